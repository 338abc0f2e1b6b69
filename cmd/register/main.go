package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/notify"
	"github.com/abellodlm/drewsigloo/pkg/reference"
	"github.com/abellodlm/drewsigloo/pkg/registration"
	"github.com/abellodlm/drewsigloo/pkg/store"
	"github.com/abellodlm/drewsigloo/pkg/venue"
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
	registerServices *RegisterServices
	appConfig        *configuration.AppConfig
)

// ClientFactory creates the venue and chat clients once credentials are known.
type ClientFactory interface {
	Venue(creds *configuration.TalosCredentials) venue.OrderFetcher
	Messenger(creds *configuration.SlackCredentials) notify.Messenger
	Responder() notify.Responder
	Reference(pairs map[string]string) registration.PriceSource
}

type clients struct{}

func (clients) Venue(creds *configuration.TalosCredentials) venue.OrderFetcher {
	return venue.NewClient(creds)
}

func (clients) Messenger(creds *configuration.SlackCredentials) notify.Messenger {
	return notify.NewSlackMessenger(creds.BotToken)
}

func (clients) Responder() notify.Responder {
	return notify.WebhookResponder{}
}

func (clients) Reference(pairs map[string]string) registration.PriceSource {
	return reference.NewKrakenReference(pairs)
}

// RegisterServices contains all services to be injected into logic.
type RegisterServices struct {
	awsConfig    aws.Config
	ssmAccess    pkg.SSMAccess
	sqsAccess    pkg.SQSAccess
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

	registerServices = &RegisterServices{}
	registerServices.awsConfig = awsConfig
	registerServices.ssmAccess = pkg.SSM{Client: ssm.NewFromConfig(awsConfig)}
	registerServices.sqsAccess = pkg.SQS{Client: sqs.NewFromConfig(awsConfig)}
	registerServices.dynamoAccess = pkg.DynamoDB{Client: dynamodb.NewFromConfig(awsConfig)}
	registerServices.secrets = configuration.SSMSecrets{}
	registerServices.clients = clients{}
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

func handleRequest(ctx context.Context, event awsEvents.SQSEvent) (*string, error) {
	if err := RegisterOrders(ctx, registerServices, appConfig, event); err != nil {
		return nil, err
	}

	return nil, nil
}

// RegisterOrders reads registration requests from the queue, reports the
// current execution of each order and stores it for monitoring.
func RegisterOrders(ctx context.Context, services *RegisterServices, appConfig *configuration.AppConfig, sqsEvent awsEvents.SQSEvent) error {
	logrus.Info("Processing Registrations")

	if len(sqsEvent.Records) == 0 {
		return fmt.Errorf("no sqs messages found, returning")
	}

	registrar, err := BuildRegistrar(ctx, services, appConfig)
	if err != nil {
		return err
	}

	for _, message := range sqsEvent.Records {
		log := logrus.WithFields(logrus.Fields{
			"messageId":      message.MessageId,
			"eventSourceArn": message.EventSourceARN,
		})
		if orderID, ok := message.MessageAttributes["OrderId"]; ok && orderID.StringValue != nil {
			log = log.WithField("orderId", *orderID.StringValue)
		}
		log.Info("Processing SQS Message")

		var req registration.Request
		if err := json.Unmarshal([]byte(message.Body), &req); err != nil || req.OrderID == "" {
			log.WithError(err).Warn("Received registration that could not be read. Deleting from Queue.")
		} else if err := registrar.Register(ctx, req); err != nil {
			return err
		}

		log.Info("Deleting Message from Queue")
		_, err := services.sqsAccess.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      queueURL(appConfig, message),
			ReceiptHandle: &message.ReceiptHandle,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// BuildRegistrar wires the registration worker.
func BuildRegistrar(ctx context.Context, services *RegisterServices, appConfig *configuration.AppConfig) (*registration.Registrar, error) {
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

	registrar := registration.NewRegistrar(
		services.clients.Venue(talosCreds),
		s,
		services.clients.Messenger(slackCreds),
		services.clients.Responder(),
		appConfig.RegistrationTTL,
		appConfig.DigestHours,
	)
	if len(appConfig.ReferencePairs) > 0 {
		registrar.Reference = services.clients.Reference(appConfig.ReferencePairs)
	}

	return registrar, nil
}

func queueURL(appConfig *configuration.AppConfig, message awsEvents.SQSMessage) *string {
	if appConfig.RegistrationQueueURL != "" {
		return aws.String(appConfig.RegistrationQueueURL)
	}
	return aws.String(message.EventSourceARN)
}

func handleRequestLocally() {
	body, err := json.Marshal(registration.NewRequest("87526ab1-e9a2-4d6e-920f-ab05c399ea9a", "C_LOCAL", "U_LOCAL", "", time.Now()))
	if err != nil {
		logrus.WithError(err).Error("Error running request locally.")
		return
	}

	event := awsEvents.SQSEvent{
		Records: []awsEvents.SQSMessage{
			{
				MessageId:      "9dd0b57-b21e-4ac1-bd88-01bbb068cb78",
				ReceiptHandle:  "MessageReceiptHandle",
				Body:           string(body),
				EventSourceARN: "fake_eventsourcearn",
			},
		},
	}

	if _, err := handleRequest(context.Background(), event); err != nil {
		logrus.WithError(err).Error("Error running request locally.")
		return
	}

	logrus.Info("request successful locally.")
}
