package main

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/registration"
	"github.com/abellodlm/drewsigloo/pkg/store"
	awsEvents "github.com/aws/aws-lambda-go/events"
	awsLambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/sirupsen/logrus"
)

var (
	commandServices *CommandServices
	appConfig       *configuration.AppConfig
)

// CommandServices contains all services to be injected into logic.
type CommandServices struct {
	awsConfig    aws.Config
	ssmAccess    pkg.SSMAccess
	sqsAccess    pkg.SQSAccess
	dynamoAccess pkg.DynamoDBAccess
	secrets      configuration.SecretSource
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

	commandServices = &CommandServices{}
	commandServices.awsConfig = awsConfig
	commandServices.ssmAccess = pkg.SSM{Client: ssm.NewFromConfig(awsConfig)}
	commandServices.sqsAccess = pkg.SQS{Client: sqs.NewFromConfig(awsConfig)}
	commandServices.dynamoAccess = pkg.DynamoDB{Client: dynamodb.NewFromConfig(awsConfig)}
	commandServices.secrets = configuration.SSMSecrets{}
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

func handleRequest(ctx context.Context, event awsEvents.APIGatewayProxyRequest) (awsEvents.APIGatewayProxyResponse, error) {
	commander, err := BuildCommander(ctx, commandServices, appConfig)
	if err != nil {
		return awsEvents.APIGatewayProxyResponse{}, err
	}

	return commander.Handle(ctx, event)
}

// BuildCommander wires the slash command handler.
func BuildCommander(ctx context.Context, services *CommandServices, appConfig *configuration.AppConfig) (*registration.Commander, error) {
	slackCreds, err := services.secrets.GetSlackDetails(ctx, services.ssmAccess, appConfig)
	if err != nil {
		return nil, err
	}

	s, err := store.New(appConfig, services.dynamoAccess)
	if err != nil {
		return nil, err
	}

	queue := registration.SQSQueue{Client: services.sqsAccess, URL: appConfig.RegistrationQueueURL}
	return registration.NewCommander(appConfig, s, queue, slackCreds.SigningSecret), nil
}

// LocalRequest builds a slash command event for a local run, signed the way
// Slack signs it when the commander verifies signatures.
func LocalRequest(commander *registration.Commander, appConfig *configuration.AppConfig, orderID string, at time.Time) awsEvents.APIGatewayProxyRequest {
	body := url.Values{
		"command":      {appConfig.SlashCommand},
		"text":         {orderID},
		"user_id":      {"U_LOCAL"},
		"channel_id":   {"C_LOCAL"},
		"channel_name": {"local"},
	}.Encode()

	event := awsEvents.APIGatewayProxyRequest{Body: body}
	if commander.SigningSecret != "" {
		event.Headers = registration.SignedHeaders(commander.SigningSecret, body, at)
	}
	return event
}

func handleRequestLocally() {
	ctx := context.Background()

	commander, err := BuildCommander(ctx, commandServices, appConfig)
	if err != nil {
		logrus.WithError(err).Error("Error running request locally.")
		return
	}

	event := LocalRequest(commander, appConfig, "87526ab1-e9a2-4d6e-920f-ab05c399ea9a", time.Now())
	res, err := commander.Handle(ctx, event)
	if err != nil {
		logrus.WithError(err).Error("Error running request locally.")
		return
	}

	logrus.WithFields(logrus.Fields{"status": res.StatusCode, "body": res.Body}).Info("request successful locally.")
}
