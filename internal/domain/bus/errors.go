package bus

import "errors"

// Bus ドメインのエラー定義
var (
	ErrBusNotFound         = errors.New("バスが見つかりません")
	ErrBusNumberRequired   = errors.New("バス番号は必須です")
	ErrBusNumberDuplicate  = errors.New("同じバス番号が既に登録されています")
	ErrBusNameRequired     = errors.New("バス名は必須です")
	ErrRouteRequired       = errors.New("出発地と到着地は必須です")
	ErrInvalidScheduleDate = errors.New("運行日は YYYY-MM-DD 形式である必要があります")
	ErrInvalidScheduleTime = errors.New("出発時刻は HH:MM 形式である必要があります")
	ErrInvalidTotalSeats   = errors.New("座席数は1以上である必要があります")
	ErrInvalidPrice        = errors.New("運賃は0以上である必要があります")
	ErrInvalidRating       = errors.New("評価は0から5の範囲である必要があります")
)
