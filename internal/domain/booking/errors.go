package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound    = errors.New("予約が見つかりません")
	ErrAlreadyConfirmed   = errors.New("予約は既に確定されています")
	ErrAlreadyCancelled   = errors.New("予約は既にキャンセルされています")
	ErrHoldExpired        = errors.New("仮押さえの有効期限が切れています。もう一度座席を選択してください")
	ErrNotTemporary       = errors.New("予約は仮押さえ中ではありません")
	ErrUserIDRequired     = errors.New("ユーザーIDは必須です")
	ErrBusIDRequired      = errors.New("バスIDは必須です")
	ErrSeatsRequired      = errors.New("座席は必須です")
	ErrBookingIDRequired  = errors.New("予約IDは必須です")
	ErrBookingIDDuplicate = errors.New("同じIDの予約が既に存在します")
)
