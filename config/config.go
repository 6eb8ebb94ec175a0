// Package config reads service and board settings from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMissingAuth = errors.New("missing auth config: set AUTH0_DOMAIN and AUTH0_AUDIENCE or LOCAL_AUTH_SHARED_SECRET")

// Server holds the settings of `taskboard serve`.
type Server struct {
	Debug bool
	Port  string

	StorageConnStr string
	TasksTable     string
	UsersTable     string
	EventsQueue    string
	SeedFile       string

	RedisConnStr   string
	UpdatesChannel string
	PageSize       int
	DeduperTTL     time.Duration
	CacheTTL       time.Duration

	AuthDomain   string
	AuthAudience string
	LocalSecret  string
}

// UseTables reports whether tasks live in Azure Table Storage rather than memory.
func (s Server) UseTables() bool { return s.StorageConnStr != "" }

// LoadServer reads the server settings and applies defaults.
func LoadServer() (Server, error) {
	s := Server{
		Debug:          envBool("DEBUG"),
		Port:           "8080",
		StorageConnStr: os.Getenv("STORAGE_CONNECTION_STRING"),
		TasksTable:     envOr("TASKS_TABLE", "Tasks"),
		UsersTable:     envOr("USERS_TABLE", "Users"),
		EventsQueue:    os.Getenv("TASK_EVENTS_QUEUE"),
		SeedFile:       os.Getenv("SEED_FILE"),
		RedisConnStr:   os.Getenv("REDIS_CONNECTION_STRING"),
		UpdatesChannel: envOr("TASK_UPDATES_CHANNEL", "task-updates"),
		AuthDomain:     os.Getenv("AUTH0_DOMAIN"),
		AuthAudience:   os.Getenv("AUTH0_AUDIENCE"),
		LocalSecret:    os.Getenv("LOCAL_AUTH_SHARED_SECRET"),
	}
	if val, ok := os.LookupEnv("PORT"); ok && val != "" {
		s.Port = val
	} else if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && val != "" {
		s.Port = val
	}

	var err error
	if s.PageSize, err = envInt("TASKS_PAGE_SIZE", 30); err != nil {
		return Server{}, err
	}
	if s.DeduperTTL, err = envDur("DEDUPER_TTL", 24*time.Hour); err != nil {
		return Server{}, err
	}
	if s.CacheTTL, err = envDur("CACHE_TTL", 5*time.Minute); err != nil {
		return Server{}, err
	}
	if s.LocalSecret == "" && (s.AuthDomain == "" || s.AuthAudience == "") {
		return Server{}, ErrMissingAuth
	}
	return s, nil
}

// Storage holds the settings of the provisioning and seeding commands.
type Storage struct {
	ConnStr     string
	TasksTable  string
	UsersTable  string
	EventsQueue string
}

// LoadStorage reads the storage settings. A connection string is required.
func LoadStorage() (Storage, error) {
	st := Storage{
		ConnStr:     os.Getenv("STORAGE_CONNECTION_STRING"),
		TasksTable:  envOr("TASKS_TABLE", "Tasks"),
		UsersTable:  envOr("USERS_TABLE", "Users"),
		EventsQueue: os.Getenv("TASK_EVENTS_QUEUE"),
	}
	if st.ConnStr == "" {
		return Storage{}, errors.New("missing STORAGE_CONNECTION_STRING")
	}
	return st, nil
}

// Board holds the settings of the terminal board.
type Board struct {
	APIURL string
	Token  string
	Home   string
}

// LoadBoard reads the board settings. Home defaults to ~/.taskboard.
func LoadBoard() (Board, error) {
	b := Board{
		APIURL: envOr("TASKBOARD_API_URL", "http://localhost:8080"),
		Token:  os.Getenv("TASKBOARD_TOKEN"),
		Home:   os.Getenv("TASKBOARD_HOME"),
	}
	if b.Home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return Board{}, fmt.Errorf("resolve home: %w", err)
		}
		b.Home = filepath.Join(dir, ".taskboard")
	}
	return b, nil
}

// SessionFile is where the board persists its session.
func (b Board) SessionFile() string {
	return filepath.Join(b.Home, "session.yaml")
}

// RedisOptions accepts either a redis:// URL or the Azure style
// "host:port,password=...,ssl=True" connection string.
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return n, nil
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return d, nil
}
