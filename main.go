package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/helpers"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/factory"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/harness"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/logging"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/observable"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/routers"
	speechservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/version"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	cli.VersionPrinter = func(c *cli.Command) {
		fmt.Printf("%s\n", c.Version)
	}

	app := &cli.Command{
		Name:        "plugnmeet-dlspeech",
		Usage:       "Direct Line Speech bridge for plugNmeet",
		Description: "without option will start server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Configuration file",
				DefaultText: "config.yaml",
				Value:       "config.yaml",
			},
		},
		Commands: []*cli.Command{
			sayCommand(),
		},
		Action:  startServer,
		Version: version.Version,
	}
	err := app.Run(context.Background(), os.Args)
	if err != nil {
		logrus.Fatalln(err)
	}
}

func loadConfig(c *cli.Command) (*config.AppConfig, *logrus.Logger, error) {
	appCnf, err := helpers.ReadYamlConfigFile(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	// set this config for global usage
	appCnf, err = config.New(appCnf)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(&appCnf.LogSettings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	appCnf.Logger = logger

	return appCnf, logger, nil
}

func startServer(ctx context.Context, c *cli.Command) error {
	appCnf, logger, err := loadConfig(c)
	if err != nil {
		return err
	}

	// now prepare our server
	err = helpers.PrepareServer(ctx, appCnf)
	if err != nil {
		logger.Fatalln(err)
	}
	defer helpers.HandleCloseConnections()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appFactory, err := factory.NewAppFactory(ctx, appCnf)
	if err != nil {
		logger.Fatalln(err)
	}

	// boot up some services
	if err = appFactory.Boot(); err != nil {
		logger.Fatalln(err)
	}

	rt := routers.New(appFactory.AppConfig, appFactory.Controllers)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Infoln("exit requested, shutting down")
		appFactory.Shutdown()
		_ = rt.Shutdown()
	}()

	err = rt.Listen(fmt.Sprintf(":%d", appCnf.Client.Port))
	if err != nil {
		logger.Fatalln(err)
	}
	return nil
}

func sayCommand() *cli.Command {
	return &cli.Command{
		Name:      "say",
		Usage:     "speak to the bot and print the recognized replies",
		ArgsUsage: "[utterance...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "wav",
				Usage: "send recorded 16kHz 16bit mono wave files instead of text",
			},
			&cli.IntFlag{
				Name:  "replies",
				Usage: "number of replies to wait for, defaults to one per utterance",
			},
			&cli.StringFlag{
				Name:  "save",
				Usage: "directory to store reply audio as wave files",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "give up after this long",
				Value: time.Minute,
			},
		},
		Action: say,
	}
}

func say(ctx context.Context, c *cli.Command) error {
	appCnf, logger, err := loadConfig(c)
	if err != nil {
		return err
	}

	utterances := c.Args().Slice()
	wavFiles := c.StringSlice("wav")
	turns := len(utterances) + len(wavFiles)
	if turns == 0 {
		return errors.New("nothing to say")
	}
	replies := int(c.Int("replies"))
	if replies <= 0 {
		replies = turns
	}

	ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()

	provider, err := speechservice.NewProvider(&appCnf.Speech, logger)
	if err != nil {
		return err
	}
	h, err := harness.New(ctx, provider, harness.Options{}, logrus.NewEntry(logger))
	if err != nil {
		return err
	}
	defer h.Close()

	if err = h.WaitForConnected(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	collected := observable.SubscribeAll(observable.Take(h.DirectLine.Activities(), replies))

	for _, u := range utterances {
		if err = h.SendTextAsSpeech(ctx, u); err != nil {
			return err
		}
	}
	for _, f := range wavFiles {
		pcm, err := speech.ReadWaveFile(f)
		if err != nil {
			return err
		}
		if _, err = h.SendAudio(ctx, pcm); err != nil {
			return err
		}
	}

	activities, err := collected.Wait(ctx)
	if err != nil {
		return err
	}
	texts, err := h.RecognizeActivitiesAsText(ctx, activities)
	if err != nil {
		return err
	}

	saveDir := c.String("save")
	for i, a := range activities {
		fmt.Printf("%d\t%s\t%s\n", i+1, a.Text, texts[i])
		if saveDir != "" && len(a.SpeechSynthesisAudio) > 0 {
			name := filepath.Join(saveDir, fmt.Sprintf("reply-%02d.wav", i+1))
			if err = speech.WriteWaveFile(name, a.SpeechSynthesisAudio); err != nil {
				return err
			}
		}
	}
	return nil
}
