// Package run owns startup and shutdown of the bot process, main only
// registers plugins and hands over
package run

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minebots-gg/minebot/commands"
	"github.com/minebots-gg/minebot/common"
	"github.com/minebots-gg/minebot/feeds"
	log "github.com/sirupsen/logrus"
)

var (
	flagRunBot        bool
	flagRunFeeds      bool
	flagRunEverything bool

	flagLogTimestamp bool
	flagVersion      bool
)

func init() {
	flag.BoolVar(&flagRunBot, "bot", false, "Set to run the discord bot")
	flag.BoolVar(&flagRunFeeds, "feeds", false, "Set to run the background feeds")
	flag.BoolVar(&flagRunEverything, "all", false, "Set to run everything")
	flag.BoolVar(&flagLogTimestamp, "ts", false, "Set to include timestamps in log")
	flag.BoolVar(&flagVersion, "version", false, "Print the version and exit")
}

// Init parses flags, sets up logging and runs the core initialization,
// call before registering plugins
func Init() {
	if !flag.Parsed() {
		flag.Parse()
	}

	if flagVersion {
		fmt.Println(common.VERSION)
		os.Exit(0)
	}

	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: !flagLogTimestamp,
	})

	if !flagRunBot && !flagRunFeeds && !flagRunEverything {
		log.Error("Didnt specify what to run, see -h for more info")
		os.Exit(1)
	}

	log.Info("Starting minebot version " + common.VERSION)

	err := common.CoreInit()
	if err != nil {
		log.WithError(err).Fatal("Failed running core init")
	}

	err = common.Init()
	if err != nil {
		log.WithError(err).Fatal("Failed initializing")
	}

	log.Info("Starting plugins")
}

// Run starts everything that was requested and blocks until a termination signal
func Run() {
	if flagRunBot || flagRunEverything {
		for _, p := range common.Plugins {
			if initer, ok := p.(common.BotInitHandler); ok {
				initer.BotInit()
			}
		}

		commands.InitCommands()

		u, err := common.BotSession.User("@me")
		if err != nil {
			log.WithError(err).Fatal("Failed retrieving bot user")
		}
		common.BotUser = u

		err = common.BotSession.Open()
		if err != nil {
			log.WithError(err).Fatal("Failed connecting to discord")
		}

		log.Infof("Connected as %s", common.BotUser.Username)
	}

	if flagRunFeeds || flagRunEverything {
		go feeds.Run()
	}

	listenSignal()
}

func listenSignal() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	shutdown()
}

func shutdown() {
	log.Info("SHUTTING DOWN...")

	wg := new(sync.WaitGroup)

	if flagRunFeeds || flagRunEverything {
		feeds.Stop(wg)
	}

	if flagRunBot || flagRunEverything {
		for _, p := range common.Plugins {
			if stopper, ok := p.(common.BotStopperHandler); ok {
				wg.Add(1)
				go stopper.StopBot(wg)
			}
		}
	}

	wg.Wait()

	if common.BotSession != nil {
		common.BotSession.Close()
	}

	// give stray goroutines a moment to finish their work
	time.Sleep(time.Second)

	log.Info("Bye..")
	os.Exit(0)
}
