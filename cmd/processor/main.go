package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/compliance"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/config"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/dispatch"
	gateway "github.com/gyantigventure/telnyx-did-buy-sub000/internal/gateways"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/inbound"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/processor"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/queue"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/ratelimit"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/registry"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/repository"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/services"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/state"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/webhook"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/pg"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/prom"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// repositories
	messageRepo := repository.NewMessageRepository(db)
	optOutRepo := repository.NewOptOutRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	registryClient, err := registry.NewClient(&registry.Config{
		URL:     config.Get().RegistryURL,
		Timeout: config.Get().RegistryTimeout,
	})
	if err != nil {
		logger.Error("failed to create registry client", "error", err)
		return
	}

	carrierClient, err := gateway.NewClient(&gateway.Config{
		URL:     config.Get().GatewayURL,
		APIKey:  config.Get().GatewayAPIKey,
		Timeout: config.Get().GatewayTimeout,
	})
	if err != nil {
		logger.Error("failed to create carrier gateway client", "error", err)
		return
	}

	// Inbound keyword replies leave through the same gate and dispatcher
	// as API sends, so the full outbound graph is wired here too.
	governor := ratelimit.NewGovernor(registry.NewTierLimits(registryClient), ratelimit.Limits{
		Capacity:     config.Get().RateDefaultCapacity,
		RefillPerSec: config.Get().RateDefaultRefillSec,
	})
	contentFilter := compliance.NewContentFilter(compliance.DefaultContentRules())
	timeWindow := compliance.NewTimeWindow(
		registry.NewAreaCodeResolver(),
		config.Get().QuietHoursEnd,
		config.Get().QuietHoursStart,
	)
	gate := compliance.NewGate(registryClient, optOutRepo, contentFilter, timeWindow, governor)

	tracker := state.NewTracker(messageRepo)
	dispatcher := dispatch.NewDispatcher(carrierClient, messageRepo, tracker, dispatch.Config{
		MaxRetries: config.Get().GatewayMaxRetries,
		RetryBase:  config.Get().GatewayRetryBase,
	})

	messageService := services.NewMessageService(messageRepo, gate, dispatcher)
	messageService.StartDispatchPool()
	defer messageService.StopDispatchPool()

	inboundProcessor := inbound.NewProcessor(messageRepo, optOutRepo, messageService, inbound.Replies{
		OptOutConfirmation: config.Get().OptOutConfirmationBody,
		OptInConfirmation:  config.Get().OptInConfirmationBody,
		Help:               config.Get().HelpReplyBody,
	})

	eventQueue, err := queue.New(redisAdap, queue.Config{
		Name:          config.Get().QueueName,
		ConsumerGroup: config.Get().QueueConsumerGroup,
		ConsumerName:  config.Get().QueueConsumerName + "-reconciler",
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	verifier := webhook.NewVerifier(config.Get().WebhookSecret, config.Get().WebhookMaxSkew)
	reconciler := webhook.NewReconciler(verifier, eventRepo, messageRepo, tracker, inboundProcessor, eventQueue, webhook.Config{
		MaxRetries: config.Get().WebhookMaxRetries,
		RetryBase:  config.Get().WebhookRetryBase,
	})

	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())

	service, err := processor.NewService(redisAdap)
	if err != nil {
		logger.Error("failed to create the processor service", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewWebhookEventProcessor(reconciler, idempotencyService, eventRepo))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start processor", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
