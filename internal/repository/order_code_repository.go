package repository

import "context"

// 日付ごとの採番
type OrderCodeSequenceRepository interface {
	//dayの次の番号を返す。初回はprefixで始まる既存注文の件数+1から始める
	Next(ctx context.Context, day string, codePrefix string) (int64, error)
}
