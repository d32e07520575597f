package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// log はパッケージ全体で共有するロガー。Setup までは開発用の設定で動く
var log *zap.Logger

func init() {
	log = NewLogger("development")
}

// NewLogger は env が production なら JSON、それ以外はカラー付きのコンソール出力のロガーを作る
// LOG_LEVEL が解釈できる値なら出力レベルを上書きする
func NewLogger(env string) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Setup は環境に応じたロガーを作成してパッケージロガーに設定する
func Setup(env string) *zap.Logger {
	l := NewLogger(env).With(zap.String("service", "bus-seat-reservation"), zap.String("env", env))
	Set(l)
	return l
}

func Get() *zap.Logger {
	return log
}

func Set(l *zap.Logger) {
	log = l
}

func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	log.Fatal(msg, fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return log.With(fields...)
}

// ForBus はバスIDを付与したロガーを返す
func ForBus(busID string) *zap.Logger {
	return log.With(zap.String("bus_id", busID))
}

// ForBooking は予約IDとバスIDを付与したロガーを返す
func ForBooking(bookingID, busID string) *zap.Logger {
	return log.With(zap.String("booking_id", bookingID), zap.String("bus_id", busID))
}

// ForPayment は決済通知を受けた予約と決済ステータスを付与したロガーを返す
// 通知の時点ではバスIDが分からないので booking_id だけを付ける
func ForPayment(bookingID, status string) *zap.Logger {
	return log.With(zap.String("booking_id", bookingID), zap.String("payment_status", status))
}

// Seats は座席番号の一覧をログフィールドにする
func Seats(numbers []int) zap.Field {
	return zap.Ints("seats", numbers)
}

// SeatCount は解放・確保した座席数をログフィールドにする
func SeatCount(n int) zap.Field {
	return zap.Int("seat_count", n)
}

// Trigger は期限切れ回収のきっかけ（lazy / sweeper / confirm）をログフィールドにする
func Trigger(trigger string) zap.Field {
	return zap.String("trigger", trigger)
}

func Sync() error {
	return log.Sync()
}
