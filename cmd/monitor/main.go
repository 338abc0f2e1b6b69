package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/abellodlm/drewsigloo/pkg/archive"
	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/monitor"
	"github.com/abellodlm/drewsigloo/pkg/notify"
	"github.com/abellodlm/drewsigloo/pkg/store"
	"github.com/abellodlm/drewsigloo/pkg/venue"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	metricsInterval = 5 * time.Minute
	shutdownTimeout = 5 * time.Second
)

// ClientFactory creates the feed and chat clients once credentials are known.
type ClientFactory interface {
	Feed(creds *configuration.TalosCredentials, maxDecodeErrors int) monitor.Dialer
	Messenger(creds *configuration.SlackCredentials) notify.Messenger
}

type clients struct{}

func (clients) Feed(creds *configuration.TalosCredentials, maxDecodeErrors int) monitor.Dialer {
	return venue.NewFeedDialer(creds, maxDecodeErrors)
}

func (clients) Messenger(creds *configuration.SlackCredentials) notify.Messenger {
	return notify.NewSlackMessenger(creds.BotToken)
}

// MonitorServices contains all services to be injected into logic.
type MonitorServices struct {
	s3Access     pkg.S3Access
	ssmAccess    pkg.SSMAccess
	glueAccess   pkg.GlueAccess
	dynamoAccess pkg.DynamoDBAccess
	secrets      configuration.SecretSource
	clients      ClientFactory
}

func main() {
	configuration.LoadDotEnv()
	configuration.ConfigureLogging(os.Getenv)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := configuration.LoadAppConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Could not retrieve default aws config")
	}

	services := &MonitorServices{
		s3Access:     pkg.S3{Client: s3.NewFromConfig(awsConfig)},
		ssmAccess:    pkg.SSM{Client: ssm.NewFromConfig(awsConfig)},
		glueAccess:   pkg.Glue{Client: glue.NewFromConfig(awsConfig)},
		dynamoAccess: pkg.DynamoDB{Client: dynamodb.NewFromConfig(awsConfig)},
		secrets:      configuration.SSMSecrets{},
		clients:      clients{},
	}

	logrus.Info("Order monitor starting")
	if err := Monitor(ctx, services, appConfig); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Fatal("Order monitor stopped")
	}
	logrus.Info("Order monitor stopped")
}

// Monitor streams venue order updates into notifications until ctx is done.
func Monitor(ctx context.Context, services *MonitorServices, appConfig *configuration.AppConfig) error {
	talosCreds, err := services.secrets.GetTalosDetails(ctx, services.ssmAccess, appConfig)
	if err != nil {
		return err
	}

	slackCreds, err := services.secrets.GetSlackDetails(ctx, services.ssmAccess, appConfig)
	if err != nil {
		return err
	}

	s, err := store.New(appConfig, services.dynamoAccess)
	if err != nil {
		return err
	}

	var archiver monitor.Archiver
	if a := archive.New(appConfig, services.s3Access, services.glueAccess); a != nil {
		archiver = a
	}

	metrics := &monitor.Metrics{}
	notifier := monitor.NewNotifier(
		s,
		services.clients.Messenger(slackCreds),
		archiver,
		monitor.Policy{Threshold: appConfig.FillThreshold},
		metrics,
	)
	session := monitor.NewSession(
		services.clients.Feed(talosCreds, appConfig.MaxDecodeErrors),
		notifier,
		appConfig.ReconnectInterval,
		metrics,
	)

	logrus.WithFields(logrus.Fields{
		"host":      talosCreds.Host,
		"store":     appConfig.StoreBackend,
		"threshold": appConfig.FillThreshold.String(),
		"interval":  appConfig.ReconnectInterval.String(),
	}).Info("Monitoring order feed")

	go metrics.LogEvery(ctx, metricsInterval)

	if appConfig.HealthAddr != "" {
		server := &http.Server{
			Addr:    appConfig.HealthAddr,
			Handler: monitor.NewHealthRouter(session, metrics, 2*appConfig.ReconnectInterval, time.Now()),
		}

		go func() {
			logrus.WithField("addr", server.Addr).Info("Serving health checks")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("Health server failed")
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	return session.Run(ctx)
}
