package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/config"
	"github.com/suPer8Hu/ragview/internal/db"
	"github.com/suPer8Hu/ragview/internal/ingest"
	"github.com/suPer8Hu/ragview/internal/logger"
	"github.com/suPer8Hu/ragview/internal/rag"
	"github.com/suPer8Hu/ragview/internal/store/rabbitmq"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	repo := chat.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	svc := ingest.NewService(repo, nil, rag.NewClient(cfg.RAGBaseURL, cfg.RAGTimeout))

	concurrency := cfg.WorkerConcurrency

	cons, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, concurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit consumer")
	}
	defer cons.Close()

	// retries go back through the retry queue
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publisher")
	}
	defer pub.Close()

	msgs, err := cons.Deliveries()
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handle(ctx, workerID, svc, pub, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error().Msg("delivery channel closed")
				close(jobs)
				wg.Wait()
				os.Exit(1)
			}
			jobs <- d
		}
	}
}

func handle(ctx context.Context, workerID int, svc *ingest.Service, pub *rabbitmq.Publisher, d amqp.Delivery) {
	jobID, err := rabbitmq.DecodeJob(d.Body)
	if err != nil {
		log.Warn().Int("worker", workerID).Err(err).Msg("bad message")
		_ = d.Nack(false, false)
		return
	}

	retries := rabbitmq.Retries(d.Headers)

	start := time.Now()
	err = svc.Process(ctx, jobID, retries > 0)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Error().Int("worker", workerID).Str("job_id", jobID).Err(err).Msg("ack failed")
		}
		return
	}

	log.Error().Int("worker", workerID).Str("job_id", jobID).Int("retries", retries).
		Dur("cost", time.Since(start)).Err(err).Msg("job failed")

	if retries < maxRetries {
		// shutdown must not turn a retry into a dead letter
		pctx := context.WithoutCancel(ctx)
		if pErr := pub.PublishRetry(pctx, jobID, retries+1, retryDelay); pErr == nil {
			_ = d.Ack(false)
			return
		}
	}
	if aErr := svc.Abandon(ctx, jobID, err.Error()); aErr != nil {
		log.Error().Int("worker", workerID).Str("job_id", jobID).Err(aErr).Msg("mark abandoned job failed")
	}
	// dead-letters to the DLQ
	_ = d.Nack(false, false)
}
