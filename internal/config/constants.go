package config

import "time"

const (
	StorageKeySessions = "chat_sessions_v2"

	DefaultGlamourStyle = "dark"
	DefaultTitle        = "新对话"
	TitleLimit          = 20

	WelcomeText    = "你好！我是AI助手，有什么可以帮你的？"
	LoadingText    = "AI正在思考..."
	ErrorText      = "抱歉，回复失败，请点击重试~"
	RetryErrorText = "抱歉，回复仍失败，请稍后再试~"
	ImageReplyText = "我已收到你上传的图片。这是一张图片的描述信息。"
	FallbackReply  = "抱歉，暂无相关回复~"
	DefaultAnswerQ = "默认回复"

	StreamInterval = 50 * time.Millisecond
	StreamStep     = 2
	ReplyLatency   = 2000 * time.Millisecond
	RetryLatency   = 1500 * time.Millisecond

	// Probability in [0, 1] that a simulated reply fails.
	DefaultFailureRate = 0.0
)

// Behavior holds the lifecycle knobs that tests and flags may override.
type Behavior struct {
	WelcomeText    string
	LoadingText    string
	ErrorText      string
	RetryErrorText string
	ImageReplyText string

	StreamInterval time.Duration
	StreamStep     int
	ReplyLatency   time.Duration
	RetryLatency   time.Duration
	FailureRate    float64
}

func DefaultBehavior() Behavior {
	return Behavior{
		WelcomeText:    WelcomeText,
		LoadingText:    LoadingText,
		ErrorText:      ErrorText,
		RetryErrorText: RetryErrorText,
		ImageReplyText: ImageReplyText,
		StreamInterval: StreamInterval,
		StreamStep:     StreamStep,
		ReplyLatency:   ReplyLatency,
		RetryLatency:   RetryLatency,
		FailureRate:    DefaultFailureRate,
	}
}
