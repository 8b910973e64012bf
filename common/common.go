package common

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mediocregopher/radix/v3"
	"github.com/minebots-gg/minebot/common/config"
	"github.com/sirupsen/logrus"
)

const VERSION = "1.4.0"

var (
	BotSession *discordgo.Session
	BotUser    *discordgo.User

	PQ        *sqlx.DB
	RedisPool *radix.Pool

	// Testing is true when running against a non production environment,
	// some operator commands are only available then
	Testing bool

	logger = logrus.WithField("p", "common")
)

var (
	ConfBotToken      = config.RegisterOption("minebot.bot_token", "Discord bot token", "")
	ConfGuildID       = config.RegisterOption("minebot.guild_id", "ID of the guild this bot manages", "")
	ConfCommandPrefix = config.RegisterOption("minebot.command_prefix", "Prefix for chat commands", "-")
	ConfBotOwner      = config.RegisterOption("minebot.owner", "ID of the bot owner", "")

	ConfRedis = config.RegisterOption("minebot.redis", "Address of the redis server", "localhost:6379")

	ConfPQHost     = config.RegisterOption("minebot.pqhost", "Postgres host", "localhost")
	ConfPQUsername = config.RegisterOption("minebot.pqusername", "Postgres user", "minebot")
	ConfPQPassword = config.RegisterOption("minebot.pqpassword", "Postgres password", "")
	ConfPQDB       = config.RegisterOption("minebot.pqdb", "Postgres database", "minebot")

	ConfTesting = config.RegisterOption("minebot.testing", "Set to enable testing only commands", false)
)

// CoreInit loads the config layers and establishes the redis connection,
// it has to run before anything reads config options
func CoreInit() error {
	config.AddSource(&config.EnvSource{})
	config.Load()

	pool, err := radix.NewPool("tcp", ConfRedis.GetString(), 10)
	if err != nil {
		return errors.WithMessage(err, "redis")
	}
	RedisPool = pool

	// config values stored in redis override the environment, reload with
	// the new source attached
	config.AddSource(&config.RedisSource{Pool: pool})
	config.Load()

	Testing = ConfTesting.GetBool()
	if Testing {
		logger.Warn("Running in testing mode")
	}

	return nil
}

// Init sets up the discord session and the postgres connection
func Init() error {
	if ConfBotToken.GetString() == "" {
		return errors.New("no bot token set (minebot.bot_token)")
	}

	session, err := discordgo.New("Bot " + ConfBotToken.GetString())
	if err != nil {
		return errors.WithMessage(err, "discordgo.New")
	}
	session.MaxRestRetries = 3
	session.Identify.Intents = discordgo.IntentsAllWithoutPrivileged | discordgo.IntentsGuildMembers
	BotSession = session

	err = connectDB()
	if err != nil {
		return errors.WithMessage(err, "connectDB")
	}

	return nil
}

func connectDB() error {
	dsn := fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable password='%s'",
		ConfPQHost.GetString(), ConfPQUsername.GetString(), ConfPQDB.GetString(), ConfPQPassword.GetString())

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return errors.WithStackIf(err)
	}
	db.SetMaxOpenConns(5)

	PQ = db
	return nil
}

// IsDiscordErr returns true if the error is a discord rest error with one of the given codes
func IsDiscordErr(err error, codes ...int) bool {
	cast, ok := errors.Cause(err).(*discordgo.RESTError)
	if !ok || cast.Message == nil {
		return false
	}

	for _, c := range codes {
		if cast.Message.Code == c {
			return true
		}
	}

	return false
}

// IsDiscordNotFound returns true for 404 responses from the discord API,
// used to tell "user left/never existed" apart from real failures
func IsDiscordNotFound(err error) bool {
	cast, ok := errors.Cause(err).(*discordgo.RESTError)
	if !ok || cast.Response == nil {
		return false
	}

	return cast.Response.StatusCode == 404
}
