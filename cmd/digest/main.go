package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/abellodlm/drewsigloo/pkg/archive"
	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/digest"
	"github.com/abellodlm/drewsigloo/pkg/notify"
	"github.com/abellodlm/drewsigloo/pkg/store"
	"github.com/abellodlm/drewsigloo/pkg/venue"
	awsEvents "github.com/aws/aws-lambda-go/events"
	awsLambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/sirupsen/logrus"
)

var (
	digestServices *DigestServices
	appConfig      *configuration.AppConfig
)

// ClientFactory creates the venue and chat clients once credentials are known.
type ClientFactory interface {
	Venue(creds *configuration.TalosCredentials) venue.OrderFetcher
	Messenger(creds *configuration.SlackCredentials) notify.Messenger
}

type clients struct{}

func (clients) Venue(creds *configuration.TalosCredentials) venue.OrderFetcher {
	return venue.NewClient(creds)
}

func (clients) Messenger(creds *configuration.SlackCredentials) notify.Messenger {
	return notify.NewSlackMessenger(creds.BotToken)
}

// DigestServices contains all services to be injected into logic.
type DigestServices struct {
	awsConfig    aws.Config
	s3Access     pkg.S3Access
	ssmAccess    pkg.SSMAccess
	glueAccess   pkg.GlueAccess
	dynamoAccess pkg.DynamoDBAccess
	secrets      configuration.SecretSource
	clients      ClientFactory
}

func init() {
	configuration.LoadDotEnv()
	configuration.ConfigureLogging(os.Getenv)

	var err error
	appConfig, err = configuration.LoadAppConfig()
	if err != nil {
		logrus.WithError(err).Panic("Invalid configuration")
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		logrus.WithError(err).Panic("Could not retrieve default aws config")
	}

	digestServices = &DigestServices{}
	digestServices.awsConfig = awsConfig
	digestServices.s3Access = pkg.S3{Client: s3.NewFromConfig(awsConfig)}
	digestServices.ssmAccess = pkg.SSM{Client: ssm.NewFromConfig(awsConfig)}
	digestServices.glueAccess = pkg.Glue{Client: glue.NewFromConfig(awsConfig)}
	digestServices.dynamoAccess = pkg.DynamoDB{Client: dynamodb.NewFromConfig(awsConfig)}
	digestServices.secrets = configuration.SSMSecrets{}
	digestServices.clients = clients{}
}

func main() {
	logrus.Info("Lambda Execution Starting")

	if configuration.InLambda(os.Getenv) {
		awsLambda.Start(handleRequest)
	} else {
		handleRequestLocally()
	}

	logrus.Info("Lambda Execution Done.")
}

func handleRequest(ctx context.Context, event awsEvents.CloudWatchEvent) (*string, error) {
	summary, err := RunDigest(ctx, digestServices, appConfig)
	if err != nil {
		return nil, err
	}

	serialised, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	result := string(serialised)
	return &result, nil
}

// RunDigest posts the scheduled digest for every monitored order.
func RunDigest(ctx context.Context, services *DigestServices, appConfig *configuration.AppConfig) (*digest.Summary, error) {
	talosCreds, err := services.secrets.GetTalosDetails(ctx, services.ssmAccess, appConfig)
	if err != nil {
		return nil, err
	}

	slackCreds, err := services.secrets.GetSlackDetails(ctx, services.ssmAccess, appConfig)
	if err != nil {
		return nil, err
	}

	s, err := store.New(appConfig, services.dynamoAccess)
	if err != nil {
		return nil, err
	}

	var archiver digest.Archiver
	if a := archive.New(appConfig, services.s3Access, services.glueAccess); a != nil {
		archiver = a
	}

	scheduler := digest.NewScheduler(
		s,
		services.clients.Venue(talosCreds),
		services.clients.Messenger(slackCreds),
		archiver,
		appConfig.DigestHours,
	)

	return scheduler.Run(ctx)
}

func handleRequestLocally() {
	res, err := handleRequest(context.Background(), awsEvents.CloudWatchEvent{})
	if err != nil {
		logrus.WithError(err).Error("Error running request locally.")
		return
	}

	logrus.WithField("result", *res).Info("request successful locally.")
}
