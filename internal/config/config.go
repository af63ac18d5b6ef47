package config

import "github.com/spf13/viper"

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
		PollTimeout int   `mapstructure:"poll_timeout"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Requests struct {
		RemedyTermDays  int    `mapstructure:"remedy_term_days"`
		WorkCatalog     string `mapstructure:"work_catalog"`
		MaterialCatalog string `mapstructure:"material_catalog"`
	} `mapstructure:"requests"`

	Reminders struct {
		PollIntervalSec int `mapstructure:"poll_interval_sec"`
		BatchSize       int `mapstructure:"batch_size"`
	} `mapstructure:"reminders"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	// переопределение через ENV (APP_*)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("requests.remedy_term_days", 14)
	v.SetDefault("reminders.poll_interval_sec", 60)
	v.SetDefault("reminders.batch_size", 50)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
