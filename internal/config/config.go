package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string   `env:"PORT" envDefault:"3000"`
		ReadTimeout     int      `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int      `env:"WRITE_TIMEOUT" envDefault:"60"` // 手动触发的对账可能比较慢
		IdleTimeout     int      `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int      `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		AllowedOrigins  []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
		AutoMigrate        bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	} `envPrefix:"DATABASE_"`
	JWT struct {
		Secret     string `env:"SECRET,required"`
		CookieName string `env:"COOKIE_NAME" envDefault:"__incubation_token"`
	} `envPrefix:"JWT_"`
	Cron struct {
		// 为空时 /cron/attendance 拒绝所有请求
		Secret string `env:"SECRET"`
	} `envPrefix:"CRON_"`
	Attendance struct {
		DefaultTimezone  string  `env:"DEFAULT_TIMEZONE" envDefault:"Asia/Karachi"`
		RunAt            string  `env:"RUN_AT" envDefault:"00:30"`
		SchedulerEnabled bool    `env:"SCHEDULER_ENABLED" envDefault:"true"`
		FallbackShift    string  `env:"FALLBACK_SHIFT" envDefault:"Morning"`
		TriggerRateLimit float64 `env:"TRIGGER_RATE_LIMIT" envDefault:"0.2"` // 每秒允许的手动触发次数
		TriggerBurst     int     `env:"TRIGGER_BURST" envDefault:"3"`
		MorningStart     string  `env:"MORNING_START" envDefault:"09:00"`
		MorningEnd       string  `env:"MORNING_END" envDefault:"14:00"`
		EveningStart     string  `env:"EVENING_START" envDefault:"14:00"`
		EveningEnd       string  `env:"EVENING_END" envDefault:"19:00"`
		LateGraceMinutes int     `env:"LATE_GRACE_MINUTES" envDefault:"15"` // 上班时间之后多少分钟内签到不算迟到
	} `envPrefix:"ATTENDANCE_"`
	Report struct {
		AdminEmails      []string `env:"ADMIN_EMAILS" envSeparator:","`
		CacheExpiration  int      `env:"CACHE_EXPIRATION" envDefault:"1209600"` // 14 天
		OperationTimeout int      `env:"OPERATION_TIMEOUT" envDefault:"5"`
	} `envPrefix:"REPORT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD" envDefault:"incubation@123"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN" envDefault:"example.com"`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host     string `env:"HOST" envDefault:"localhost"`
		Port     int    `env:"PORT" envDefault:"6379"`
		Password string `env:"PASSWORD"`
		DB       int    `env:"DB" envDefault:"0"`
	} `envPrefix:"REDIS_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
