package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/notifications"
	"github.com/geocoder89/taskhub/internal/queue/worker"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBURL)

	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	defer pool.Close()

	jobsRepo := postgres.NewJobsRepo(pool, nil)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		notifications.ProtectedNotifierConfig{},
	)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval: 500 * time.Millisecond,
		WorkerID:     workerID,
	}, jobsRepo, notifier)

	// probe server next to the polling loop
	probeAddr := ":" + strconv.Itoa(probePort())

	probeSrv := &http.Server{
		Addr:              probeAddr,
		Handler:           worker.ProbeHandler(pool, func() bool { return ctx.Err() != nil }),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := probeSrv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Printf("probe server failed: %v", err)
		}
	}()

	log.Println("worker has started")

	if err := w.Run(ctx); err != nil {
		log.Printf("worker stopped with error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_ = probeSrv.Shutdown(shutdownCtx)

	log.Println("worker shutdown complete")

}

func probePort() int {
	raw := os.Getenv("WORKER_PROBE_PORT")

	if raw == "" {
		return 8081
	}

	p, err := strconv.Atoi(raw)

	if err != nil || p <= 0 {
		return 8081
	}

	return p
}
