package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aito-ai/voice-agent-backend/internal/db"
	"github.com/aito-ai/voice-agent-backend/internal/models"
	"github.com/aito-ai/voice-agent-backend/internal/utils"
)

// Operator helper: prints the most recent sessions straight from Mongo.
func main() {
	limit := flag.Int64("limit", 20, "number of sessions to print")
	status := flag.String("status", "", "filter by status (active, completed, abandoned)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	store, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		panic(err)
	}
	defer store.Close(ctx)

	filter := bson.M{}
	if *status != "" {
		filter["status"] = *status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "startTime", Value: -1}}).
		SetLimit(*limit)

	cursor, err := store.Sessions.Find(ctx, filter, opts)
	if err != nil {
		panic(err)
	}
	defer cursor.Close(ctx)

	var sessions []models.ConversationSession
	if err := cursor.All(ctx, &sessions); err != nil {
		panic(err)
	}

	fmt.Printf("sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		duration := "-"
		if s.Duration != nil {
			duration = fmt.Sprintf("%ds", *s.Duration)
		}
		fmt.Printf("- %s user=%s status=%s started=%s duration=%s messages=%d\n",
			s.SessionID, s.UserID, s.Status,
			s.StartTime.Format("2006-01-02 15:04:05"),
			duration, s.MessageCount())
	}
}
