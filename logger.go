package twheel

import "log"

// Logger 接收 Driver 的啟動、停止、追趕時鐘與處理函數 panic 等訊息
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc 讓任意 Printf 形式的函數（zap 的 Sugar().Infof、logrus.Printf 等）
// 可以直接當作 Logger 使用
type LoggerFunc func(format string, args ...any)

// Printf 實作 Logger
func (f LoggerFunc) Printf(format string, args ...any) {
	f(format, args...)
}

// defaultLogger 不輸出任何訊息，Driver 未設定 WithLogger 時使用
var defaultLogger Logger = LoggerFunc(func(string, ...any) {})

// Printf 將 Driver 的訊息寫到標準 log 套件
var Printf Logger = LoggerFunc(log.Printf)
