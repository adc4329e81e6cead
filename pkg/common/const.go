package common

const (
	KEY_LAST_PRICE = "last_price:%s"
	KEY_BOT_STATE  = "bot_state:%s"
	KEY_LAST_ERROR = "last_error:%d:%s"
	KEY_POSITION   = "position:%d:%s"
)

const (
	PROVIDER_ALPACA = "alpaca"
	PROVIDER_YAHOO  = "yahoo"
)

const (
	DRIVER_POSTGRES = "postgres"
	DRIVER_MEMORY   = "memory"
	DRIVER_REDIS    = "redis"
)

const (
	SINK_LOG      = "log"
	SINK_TELEGRAM = "telegram"
	SINK_REDIS    = "redis"
)

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)
