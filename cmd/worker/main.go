package main

import (
	"context"
	"log"
	"os"

	"ootdapi/dbhelper"
	"ootdapi/services"
	"ootdapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
)

func runScheduler() {

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	purgeTask, err := tasks.NewCachePurgeTask()
	if err != nil {
		log.Fatalf("Failed to build cache purge task: %v", err)
	}

	scheduled := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "@every 1h",
			task: purgeTask,
			desc: "Expired outfit cache purge",
		},
	}

	for _, t := range scheduled {
		entryID, err := scheduler.Register(t.cron, t.task)
		if err != nil {
			log.Fatalf("Failed to register task '%s': %v", t.desc, err)
		}
		log.Printf("Registered task '%s' with ID: %s, cron: %s", t.desc, entryID, t.cron)
	}

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"generate": 7,
			"default":  3,
		}},
	)
	awsService := &services.AWSService{}
	llm := services.NewGoogleOutfitLLM()
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}

	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc("generate:outfit_image", func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleOutfitImageTask(ctx, t, db, llm, awsService, app)
	})
	mux.HandleFunc("cache:purge", func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleCachePurgeTask(ctx, t, db)
	})

	go runScheduler()
	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
