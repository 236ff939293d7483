package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"swapstyle-service/internal/blobstore"
	"swapstyle-service/internal/docstore"
	"swapstyle-service/internal/handler"
	"swapstyle-service/internal/middleware"
	"swapstyle-service/internal/mongo"
	"swapstyle-service/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	mongoDB := os.Getenv("MONGO_DB")
	if mongoDB == "" {
		mongoDB = "swapstyle"
	}

	client := mongo.NewMongoClient(mongoURI)
	db := client.Database(mongoDB)
	blobs := blobstore.NewGridFSStore(db)

	// Documents go to Postgres when DATABASE_URL is set, otherwise to the
	// same mongo instance. Images stay in GridFS either way.
	var docs docstore.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pg, err := sqlx.Connect("postgres", dbURL)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		store := docstore.NewPostgresStore(pg)
		if err := store.Migrate(context.Background()); err != nil {
			log.Fatalf("db migrate error: %v", err)
		}
		docs = store
		log.Println("Using Postgres document store")
	} else {
		docs = docstore.NewMongoStore(db)
		log.Println("Using Mongo document store")
	}

	sessions := service.NewSessions(docs, blobs)
	defer sessions.Close()

	itemHandler := &handler.ItemHandler{Sessions: sessions}
	swapHandler := &handler.SwapHandler{Sessions: sessions}
	imageHandler := &handler.ImageHandler{Blobs: blobs}

	r := gin.Default()
	api := r.Group("/api")

	// Images are public; everything else needs an authenticated session.
	imageHandler.RegisterRoutes(api)

	protected := api.Group("/")
	protected.Use(middleware.JWTAuthMiddleware())
	itemHandler.RegisterRoutes(protected)
	swapHandler.RegisterRoutes(protected)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}
	log.Printf("SwapStyle service running on :%s …", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
