package config

type Config struct {
	DiscordToken          string `env:"DISCORD_TOKEN"`
	DataDir               string `env:"DATA_DIR" envDefault:"./data"`
	BotStatus             string `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle
	BotActivity           string `env:"BOT_ACTIVITY" envDefault:"24/7 Radio"`
	DashboardURL          string `env:"DASHBOARD_URL"`
	AMQPURL               string `env:"AMQP_URL"`
	BroadcastExchange     string `env:"BROADCAST_EXCHANGE" envDefault:"radio.events"`
	RegisterCommandsOnBot bool   `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	DefaultStationID      int64  `env:"DEFAULT_STATION_ID" envDefault:"1"`
}
