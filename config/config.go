package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// PocketBase External Server
	PocketBaseURL   string // PocketBase server URL (e.g., http://192.168.100.100:8090)
	PocketBaseToken string // Auth token for API access

	// Telegram Bot
	TelegramBotToken string
	AuthorizedChatID string

	// HTTP API
	HTTPAddr string

	// Store selects the backing store: "pocketbase" or "memory"
	Store string

	// PhotoDir is where normalized check-in selfies are written
	PhotoDir string

	// Attendance rules
	WorkStartTime   string // 15:04:05; empty disables late detection
	Timezone        *time.Location
	CheckInCooldown time.Duration

	// Background loops
	NotificationPoll time.Duration
	MonitorPoll      time.Duration

	// SiteFile is an optional YAML file that overrides the stored work site and is watched for changes
	SiteFile string
}

func LoadConfig() (*Config, error) {
	cwd, _ := os.Getwd()
	log.Printf("Current working directory: %s", cwd)

	if _, err := os.Stat(".env"); err != nil {
		log.Printf("os.Stat(.env) error: %v", err)
	} else {
		log.Println(".env file exists according to os.Stat")
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("godotenv.Load() error: %v", err)
	}

	// Get PocketBase URL (required)
	pbURL := os.Getenv("POCKETBASE_URL")
	if pbURL == "" {
		pbURL = "http://192.168.100.100:8090" // Default external server
	}

	tz := time.UTC
	if name := os.Getenv("TIMEZONE"); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			log.Printf("Warning: unknown TIMEZONE %q, using UTC: %v", name, err)
		} else {
			tz = loc
		}
	}

	return &Config{
		PocketBaseURL:    pbURL,
		PocketBaseToken:  os.Getenv("POCKETBASE_TOKEN"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AuthorizedChatID: os.Getenv("AUTHORIZED_CHAT_ID"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		Store:            getEnv("STORE", "pocketbase"),
		PhotoDir:         getEnv("PHOTO_DIR", "data/selfies"),
		WorkStartTime:    os.Getenv("WORK_START_TIME"),
		Timezone:         tz,
		CheckInCooldown:  getDuration("CHECKIN_COOLDOWN", time.Hour),
		NotificationPoll: getDuration("NOTIFICATION_POLL", 3*time.Second),
		MonitorPoll:      getDuration("MONITOR_POLL", 5*time.Second),
		SiteFile:         os.Getenv("SITE_CONFIG"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go durations ("90s") or plain seconds ("90")
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Warning: invalid %s=%q, using %s", key, v, fallback)
	return fallback
}
