package config

import (
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	conf     *viper.Viper
	confOnce sync.Once
)

// Conf returns the process configuration. Values come from the environment,
// overlaid on an optional .env file in the working directory.
func Conf() *viper.Viper {
	confOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			GetLogrusInstance().Warnf("could not load .env file: %v", err)
		}

		v := viper.New()
		v.SetTypeByDefaultValue(true)
		v.SetDefault("APP_NAME", "LECTURE-REMINDER")
		v.SetDefault("HTTP_HOST", "0.0.0.0")
		v.SetDefault("HTTP_PORT", "8000")
		v.SetDefault("DB_PORT", "5432")
		v.SetDefault("DB_SSLMODE", "disable")
		v.SetDefault("ENCRYPTION_KEY", "")
		v.SetDefault("JWT_SECRET", "")
		v.SetDefault("REDIS_ADDR", "")
		v.SetDefault("REDIS_PASSWORD", "")
		v.SetDefault("SETTINGS_CACHE_TTL", 5*time.Minute)
		v.SetDefault("REMINDER_ENABLED", true)
		v.SetDefault("REMINDER_INTERVAL", time.Minute)
		v.SetDefault("REMINDER_WINDOW", 60*time.Minute)
		v.SetDefault("REMINDER_TICK_TIMEOUT", 50*time.Second)
		v.SetDefault("REMINDER_WORKERS", 10)
		v.SetDefault("REMINDER_TIMEZONE", "Local")
		v.SetDefault("DISPATCH_WORKERS", 4)
		v.SetDefault("PROVIDER_TIMEOUT", 15*time.Second)
		v.SetDefault("USECASE_TIMEOUT", 10*time.Second)
		v.SetDefault("WHATSAPP_ENABLED", false)
		v.SetDefault("WHATSAPP_QR_PATH", "qrcode.png")
		v.AutomaticEnv()
		conf = v
	})
	return conf
}

func GetEncryptionKey() string { return Conf().GetString("ENCRYPTION_KEY") }

func GetJWTSecret() []byte { return []byte(Conf().GetString("JWT_SECRET")) }

func GetSettingsCacheTTL() time.Duration { return Conf().GetDuration("SETTINGS_CACHE_TTL") }

func GetUseCaseTimeout() time.Duration { return Conf().GetDuration("USECASE_TIMEOUT") }

func GetProviderTimeout() time.Duration { return Conf().GetDuration("PROVIDER_TIMEOUT") }

func GetDispatchWorkers() int { return Conf().GetInt("DISPATCH_WORKERS") }

func IsReminderEnabled() bool { return Conf().GetBool("REMINDER_ENABLED") }

func IsWhatsAppEnabled() bool { return Conf().GetBool("WHATSAPP_ENABLED") }

type ScannerSettings struct {
	Interval    time.Duration
	Window      time.Duration
	TickTimeout time.Duration
	Workers     int
	Location    *time.Location
}

func GetScannerSettings() (ScannerSettings, error) {
	c := Conf()
	loc, err := time.LoadLocation(c.GetString("REMINDER_TIMEZONE"))
	if err != nil {
		return ScannerSettings{}, err
	}
	return ScannerSettings{
		Interval:    c.GetDuration("REMINDER_INTERVAL"),
		Window:      c.GetDuration("REMINDER_WINDOW"),
		TickTimeout: c.GetDuration("REMINDER_TICK_TIMEOUT"),
		Workers:     c.GetInt("REMINDER_WORKERS"),
		Location:    loc,
	}, nil
}
