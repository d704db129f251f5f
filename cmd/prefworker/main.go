package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"homescore/internal/config"
	"homescore/internal/events"
	"homescore/internal/lock"
	"homescore/internal/logger"
	"homescore/internal/metrics"
	"homescore/internal/repository"
	"homescore/internal/service"
	"homescore/internal/state"
)

// Flags holds CLI flags for the worker. Everything else comes from config.
type Flags struct {
	GroupID      string
	InputSource  string // kafka|file
	InputFile    string
	BatchSize    int
	BatchWait    time.Duration
	OutputTopic  string
	OutputTxID   string
	ServeMetrics bool
}

func main() {
	fl := readFlags()
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.New(cfg.LogLevel).WithField("component", "prefworker")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, fl, cfg, log); err != nil {
		log.WithError(err).Fatal("prefworker failed")
	}
}

func readFlags() Flags {
	var f Flags
	flag.StringVar(&f.GroupID, "group-id", "homescore-prefworker", "consumer group id")
	flag.StringVar(&f.InputSource, "input-source", "kafka", "interaction source: kafka|file")
	flag.StringVar(&f.InputFile, "input-file", "interactions.jsonl", "JSONL interaction events for --input-source=file")
	flag.IntVar(&f.BatchSize, "batch-size", 200, "max events per recompute batch")
	flag.DurationVar(&f.BatchWait, "batch-wait", 2*time.Second, "max time to fill a batch")
	flag.StringVar(&f.OutputTopic, "output-topic", "", "kafka topic for updated preference vectors (disabled when empty)")
	flag.StringVar(&f.OutputTxID, "output-tx-id", "", "transactional id for --output-topic (enables exactly-once when set)")
	flag.BoolVar(&f.ServeMetrics, "serve-metrics", true, "serve /metrics and /healthz on METRICS_ADDR")
	flag.Parse()
	return f
}

func run(ctx context.Context, fl Flags, cfg *config.Config, log logrus.FieldLogger) error {
	var repo repository.Repository
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		repo = pg
	} else {
		log.Warn("DATABASE_URL not set; using an empty in-memory repository")
		repo = repository.NewMemory()
	}

	st, err := state.NewPebbleStore(cfg.PebbleDir)
	if err != nil {
		return err
	}
	defer st.Close()

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, 30*time.Second)
	}

	mreg := metrics.NewRegistry()
	if fl.ServeMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
			})
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			if err := srv.ListenAndServe(); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	svc := service.New(repo, st, locker, nil, mreg, log, service.Options{
		CMA:        cfg.CMAPolicy(),
		Deal:       cfg.DealPolicy(),
		Preference: cfg.PreferencePolicy(),
		Workers:    cfg.Workers,
	})
	h := events.NewHandler(repo, svc, log, mreg)

	if fl.InputSource == "file" {
		return replayFile(ctx, fl, h, log)
	}
	if cfg.KafkaBootstrap == "" {
		return errors.New("KAFKA_BOOTSTRAP is required for --input-source=kafka")
	}
	return consume(ctx, fl, cfg, h, svc, log)
}

// replayFile feeds a JSONL file through the handler in batches.
func replayFile(ctx context.Context, fl Flags, h *events.Handler, log logrus.FieldLogger) error {
	f, err := os.Open(fl.InputFile)
	if err != nil {
		return errors.Wrap(err, "open input")
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4<<20)

	var batch [][]byte
	total := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		clients, err := h.HandleBatch(ctx, batch)
		if err != nil {
			return err
		}
		total += len(clients)
		batch = batch[:0]
		return nil
	}
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		batch = append(batch, append([]byte(nil), sc.Bytes()...))
		if len(batch) >= fl.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	if err := flush(); err != nil {
		return err
	}
	log.WithField("recomputes", total).Info("file replay complete")
	return nil
}

// consume reads interaction events from Kafka, recomputes the affected
// clients once per batch and commits offsets only after the batch is
// stored. With --output-tx-id the vector output and the offsets commit in
// one transaction.
func consume(ctx context.Context, fl Flags, cfg *config.Config, h *events.Handler, svc *service.Service, log logrus.FieldLogger) error {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBootstrap,
		"group.id":           fl.GroupID,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return errors.Wrap(err, "consumer")
	}
	defer c.Close()
	if err := c.SubscribeTopics([]string{cfg.InteractionTopic}, nil); err != nil {
		return errors.Wrap(err, "subscribe")
	}

	var p *ck.Producer
	if fl.OutputTopic != "" {
		conf := &ck.ConfigMap{
			"bootstrap.servers":  cfg.KafkaBootstrap,
			"enable.idempotence": true,
			"acks":               "all",
		}
		if fl.OutputTxID != "" {
			_ = conf.SetKey("transactional.id", fl.OutputTxID)
		}
		if p, err = ck.NewProducer(conf); err != nil {
			return errors.Wrap(err, "producer")
		}
		defer p.Close()
		if fl.OutputTxID != "" {
			if err := p.InitTransactions(ctx); err != nil {
				return errors.Wrap(err, "init tx")
			}
		}
	}
	log.WithFields(logrus.Fields{"topic": cfg.InteractionTopic, "group": fl.GroupID, "output": fl.OutputTopic}).Info("prefworker started")

	for ctx.Err() == nil {
		batch := readBatch(c, fl)
		if len(batch) == 0 {
			continue
		}
		payloads := make([][]byte, len(batch))
		for i, m := range batch {
			payloads[i] = m.Value
		}
		clients, err := h.HandleBatch(ctx, payloads)
		if err != nil {
			// offsets stay uncommitted; the batch is redelivered after restart
			return err
		}
		if p != nil && fl.OutputTxID != "" {
			if err := produceTx(ctx, c, p, fl.OutputTopic, svc, clients); err != nil {
				log.WithError(err).Warn("preference output transaction aborted")
			}
			continue
		}
		if p != nil {
			if err := produceVectors(p, fl.OutputTopic, svc, clients); err != nil {
				log.WithError(err).Warn("preference output failed")
			}
		}
		if _, err := c.Commit(); err != nil {
			log.WithError(err).Warn("commit offsets")
		}
	}
	return nil
}

// readBatch collects up to BatchSize messages or whatever arrives within
// BatchWait.
func readBatch(c *ck.Consumer, fl Flags) []*ck.Message {
	deadline := time.Now().Add(fl.BatchWait)
	var out []*ck.Message
	for len(out) < fl.BatchSize {
		left := time.Until(deadline)
		if left <= 0 {
			break
		}
		msg, err := c.ReadMessage(left)
		if err != nil {
			// timeout or transient broker error; hand back what we have
			break
		}
		out = append(out, msg)
	}
	return out
}

func produceVectors(p *ck.Producer, topic string, svc *service.Service, clients []string) error {
	for _, id := range clients {
		pv, ok, err := svc.Preference(id)
		if err != nil || !ok {
			continue
		}
		b, err := json.Marshal(pv)
		if err != nil {
			return err
		}
		if err := p.Produce(&ck.Message{TopicPartition: ck.TopicPartition{Topic: &topic, Partition: ck.PartitionAny}, Key: []byte(id), Value: b}, nil); err != nil {
			return err
		}
	}
	p.Flush(5000)
	return nil
}

func produceTx(ctx context.Context, c *ck.Consumer, p *ck.Producer, topic string, svc *service.Service, clients []string) error {
	if err := p.BeginTransaction(); err != nil {
		return errors.Wrap(err, "begin tx")
	}
	abort := func(err error) error {
		_ = p.AbortTransaction(ctx)
		return err
	}
	if err := produceVectors(p, topic, svc, clients); err != nil {
		return abort(err)
	}
	assignment, err := c.Assignment()
	if err != nil {
		return abort(err)
	}
	positions, err := c.Position(assignment)
	if err != nil {
		return abort(err)
	}
	meta, err := c.GetConsumerGroupMetadata()
	if err != nil {
		return abort(err)
	}
	if err := p.SendOffsetsToTransaction(ctx, positions, meta); err != nil {
		return abort(err)
	}
	if err := p.CommitTransaction(ctx); err != nil {
		return abort(err)
	}
	return nil
}
