package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/shared/utils"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	KV        KVConfig
	Auth      AuthConfig
	Game      GameConfig
	Lobby     LobbyConfig
	Terrain   TerrainConfig
	Frontend  FrontendConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type KVConfig struct {
	Enabled        bool
	URL            string
	Host           string
	Port           string
	Password       string
	DB             int
	PoolSize       int
	PoolTimeout    time.Duration
	CommandTimeout time.Duration
	DialTimeout    time.Duration
}

type AuthConfig struct {
	TokenSecret string
}

// GameConfig carries the simulation tunables. Changing them only affects
// rooms created after the restart; running rooms keep the values they
// captured at creation.
type GameConfig struct {
	StartDelay           time.Duration
	TickInterval         time.Duration
	AutoExpandInterval   time.Duration
	AutoCaptureThreshold int
	HexValue             int
	ExpGrowth            int
	OccupiedBase         int
	AttackMult           float64
	BaseIncome           int
	StartingPoints       int
	StartingMaxPoints    int
	UpgradeBankCost      int
	UpgradeFortCost      int
	UpgradeCityCost      int
	EventLogLimit        int
	CleanupDelay         time.Duration
	SessionTTL           time.Duration
	PlayerColors         []string
}

type LobbyConfig struct {
	MinReady int
	Capacity int
}

type TerrainConfig struct {
	Seed                 int64
	MountainChainsMin    int
	MountainChainsMax    int
	MountainChainLenMin  int
	MountainChainLenMax  int
	MountainDensity      float64
	MountainZigzagChance float64
	MountainChainSpacing int
	MountainAreaSize     int
	RiverCount           int
	RiverLength          int
	RiverForkChance      float64
	RiverForkLength      int
	RiverSpacing         int
}

type FrontendConfig struct {
	URL       string
	CORSDebug bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

type RateLimitConfig struct {
	Enabled           bool
	TrustProxy        bool
	RequestsPerSecond float64
	BurstSize         int
	MessagesPerSecond float64
	MessageBurstSize  int
}

var GlobalConfig *Config

func Init() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config, err := load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	GlobalConfig = config
	return nil
}

func load() (*Config, error) {
	config := &Config{
		Server:    loadServerConfig(),
		KV:        loadKVConfig(),
		Auth:      loadAuthConfig(),
		Game:      loadGameConfig(),
		Lobby:     loadLobbyConfig(),
		Terrain:   loadTerrainConfig(),
		Frontend:  loadFrontendConfig(),
		Logging:   loadLoggingConfig(),
		RateLimit: loadRateLimitConfig(),
	}

	return config, nil
}

func loadServerConfig() ServerConfig {
	readTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_READ_TIMEOUT_SECONDS", "15"))
	writeTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_WRITE_TIMEOUT_SECONDS", "15"))
	idleTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_IDLE_TIMEOUT_SECONDS", "60"))

	return ServerConfig{
		Port:         utils.GetEnv("SERVER_PORT", "8080"),
		Environment:  utils.GetEnv("ENVIRONMENT", "development"),
		StaticDir:    utils.GetEnv("STATIC_DIR", "web"),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
		IdleTimeout:  time.Duration(idleTimeout) * time.Second,
	}
}

func loadKVConfig() KVConfig {
	enabled := utils.GetEnv("KV_ENABLED", "true") == "true"
	kvURL := utils.GetEnv("KV_URL", "")

	db, _ := strconv.Atoi(utils.GetEnv("KV_DB", "0"))
	poolSize, _ := strconv.Atoi(utils.GetEnv("KV_POOL_SIZE", "10"))
	poolTimeout, _ := strconv.Atoi(utils.GetEnv("KV_POOL_TIMEOUT_SECONDS", "30"))
	commandTimeout, _ := strconv.Atoi(utils.GetEnv("KV_COMMAND_TIMEOUT_SECONDS", "5"))
	dialTimeout, _ := strconv.Atoi(utils.GetEnv("KV_DIAL_TIMEOUT_SECONDS", "10"))

	return KVConfig{
		Enabled:        enabled,
		URL:            kvURL,
		Host:           utils.GetEnv("KV_HOST", "localhost"),
		Port:           utils.GetEnv("KV_PORT", "6379"),
		Password:       utils.GetEnv("KV_PASSWORD", ""),
		DB:             db,
		PoolSize:       poolSize,
		PoolTimeout:    time.Duration(poolTimeout) * time.Second,
		CommandTimeout: time.Duration(commandTimeout) * time.Second,
		DialTimeout:    time.Duration(dialTimeout) * time.Second,
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret: utils.GetEnv("TOKEN_SECRET", ""),
	}
}

func loadGameConfig() GameConfig {
	startDelay, _ := strconv.Atoi(utils.GetEnv("GAME_START_DELAY_MS", "5000"))
	tickInterval, _ := strconv.Atoi(utils.GetEnv("GAME_TICK_INTERVAL_MS", "1000"))
	autoExpandInterval, _ := strconv.Atoi(utils.GetEnv("GAME_AUTO_EXPAND_INTERVAL_MS", "10000"))
	autoCaptureThreshold, _ := strconv.Atoi(utils.GetEnv("GAME_AUTO_CAPTURE_THRESHOLD", "3"))
	hexValue, _ := strconv.Atoi(utils.GetEnv("GAME_HEX_VALUE", "10"))
	expGrowth, _ := strconv.Atoi(utils.GetEnv("GAME_EXP_GROWTH", "5"))
	occupiedBase, _ := strconv.Atoi(utils.GetEnv("GAME_OCCUPIED_BASE", "5"))
	attackMult, _ := strconv.ParseFloat(utils.GetEnv("GAME_ATTACK_MULT", "2.5"), 64)
	baseIncome, _ := strconv.Atoi(utils.GetEnv("GAME_BASE_INCOME", "2"))
	startingPoints, _ := strconv.Atoi(utils.GetEnv("GAME_STARTING_POINTS", "200"))
	startingMaxPoints, _ := strconv.Atoi(utils.GetEnv("GAME_STARTING_MAX_POINTS", "200"))
	bankCost, _ := strconv.Atoi(utils.GetEnv("GAME_UPGRADE_BANK_COST", "100"))
	fortCost, _ := strconv.Atoi(utils.GetEnv("GAME_UPGRADE_FORT_COST", "300"))
	cityCost, _ := strconv.Atoi(utils.GetEnv("GAME_UPGRADE_CITY_COST", "200"))
	eventLogLimit, _ := strconv.Atoi(utils.GetEnv("GAME_EVENT_LOG_LIMIT", "10000"))
	cleanupDelay, _ := strconv.Atoi(utils.GetEnv("GAME_CLEANUP_DELAY_SECONDS", "60"))
	sessionTTL, _ := strconv.Atoi(utils.GetEnv("GAME_SESSION_TTL_SECONDS", "3600"))

	return GameConfig{
		StartDelay:           time.Duration(startDelay) * time.Millisecond,
		TickInterval:         time.Duration(tickInterval) * time.Millisecond,
		AutoExpandInterval:   time.Duration(autoExpandInterval) * time.Millisecond,
		AutoCaptureThreshold: autoCaptureThreshold,
		HexValue:             hexValue,
		ExpGrowth:            expGrowth,
		OccupiedBase:         occupiedBase,
		AttackMult:           attackMult,
		BaseIncome:           baseIncome,
		StartingPoints:       startingPoints,
		StartingMaxPoints:    startingMaxPoints,
		UpgradeBankCost:      bankCost,
		UpgradeFortCost:      fortCost,
		UpgradeCityCost:      cityCost,
		EventLogLimit:        eventLogLimit,
		CleanupDelay:         time.Duration(cleanupDelay) * time.Second,
		SessionTTL:           time.Duration(sessionTTL) * time.Second,
		PlayerColors:         loadPlayerColors(),
	}
}

func loadPlayerColors() []string {
	raw := utils.GetEnv("GAME_PLAYER_COLORS", "")
	if raw == "" {
		return []string{
			"#e74c3c", "#3498db", "#2ecc71", "#f1c40f",
			"#9b59b6", "#e67e22", "#1abc9c", "#e84393",
		}
	}

	parts := strings.Split(raw, ",")
	colors := make([]string, 0, len(parts))
	for _, part := range parts {
		if color := strings.TrimSpace(part); color != "" {
			colors = append(colors, color)
		}
	}
	return colors
}

func loadLobbyConfig() LobbyConfig {
	minReady, _ := strconv.Atoi(utils.GetEnv("LOBBY_MIN_READY", "2"))
	capacity, _ := strconv.Atoi(utils.GetEnv("LOBBY_CAPACITY", "16"))

	return LobbyConfig{
		MinReady: minReady,
		Capacity: capacity,
	}
}

func loadTerrainConfig() TerrainConfig {
	seed, _ := strconv.ParseInt(utils.GetEnv("TERRAIN_SEED", "0"), 10, 64)
	chainsMin, _ := strconv.Atoi(utils.GetEnv("TERRAIN_MOUNTAIN_CHAINS_MIN", "3"))
	chainsMax, _ := strconv.Atoi(utils.GetEnv("TERRAIN_MOUNTAIN_CHAINS_MAX", "10"))
	chainLenMin, _ := strconv.Atoi(utils.GetEnv("TERRAIN_MOUNTAIN_CHAIN_LENGTH_MIN", "8"))
	chainLenMax, _ := strconv.Atoi(utils.GetEnv("TERRAIN_MOUNTAIN_CHAIN_LENGTH_MAX", "10"))
	density, _ := strconv.ParseFloat(utils.GetEnv("TERRAIN_MOUNTAIN_DENSITY", "0.15"), 64)
	zigzagChance, _ := strconv.ParseFloat(utils.GetEnv("TERRAIN_MOUNTAIN_ZIGZAG_CHANCE", "0.2"), 64)
	chainSpacing, _ := strconv.Atoi(utils.GetEnv("TERRAIN_MOUNTAIN_CHAIN_SPACING", "12"))
	areaSize, _ := strconv.Atoi(utils.GetEnv("TERRAIN_MOUNTAIN_AREA_SIZE", "40"))
	riverCount, _ := strconv.Atoi(utils.GetEnv("TERRAIN_RIVER_COUNT", "3"))
	riverLength, _ := strconv.Atoi(utils.GetEnv("TERRAIN_RIVER_LENGTH", "18"))
	forkChance, _ := strconv.ParseFloat(utils.GetEnv("TERRAIN_RIVER_FORK_CHANCE", "0.3"), 64)
	forkLength, _ := strconv.Atoi(utils.GetEnv("TERRAIN_RIVER_FORK_LENGTH", "7"))
	riverSpacing, _ := strconv.Atoi(utils.GetEnv("TERRAIN_RIVER_SPACING", "15"))

	return TerrainConfig{
		Seed:                 seed,
		MountainChainsMin:    chainsMin,
		MountainChainsMax:    chainsMax,
		MountainChainLenMin:  chainLenMin,
		MountainChainLenMax:  chainLenMax,
		MountainDensity:      density,
		MountainZigzagChance: zigzagChance,
		MountainChainSpacing: chainSpacing,
		MountainAreaSize:     areaSize,
		RiverCount:           riverCount,
		RiverLength:          riverLength,
		RiverForkChance:      forkChance,
		RiverForkLength:      forkLength,
		RiverSpacing:         riverSpacing,
	}
}

func loadFrontendConfig() FrontendConfig {
	corsDebug := utils.GetEnv("CORS_DEBUG", "") == "true"

	return FrontendConfig{
		URL:       utils.GetEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSDebug: corsDebug,
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")
	jsonFormat := environment == "production"

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "debug"),
		Format:     utils.GetEnv("LOG_FORMAT", "text"),
		JSONFormat: jsonFormat,
	}
}

func loadRateLimitConfig() RateLimitConfig {
	enabled := utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true"
	trustProxy := utils.GetEnv("RATE_LIMIT_TRUST_PROXY", "false") == "true"
	requestsPerSecond, _ := strconv.ParseFloat(utils.GetEnv("RATE_LIMIT_REQUESTS_PER_SECOND", "10"), 64)
	burstSize, _ := strconv.Atoi(utils.GetEnv("RATE_LIMIT_BURST_SIZE", "20"))
	messagesPerSecond, _ := strconv.ParseFloat(utils.GetEnv("RATE_LIMIT_MESSAGES_PER_SECOND", "40"), 64)
	messageBurstSize, _ := strconv.Atoi(utils.GetEnv("RATE_LIMIT_MESSAGE_BURST_SIZE", "80"))

	return RateLimitConfig{
		Enabled:           enabled,
		TrustProxy:        trustProxy,
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burstSize,
		MessagesPerSecond: messagesPerSecond,
		MessageBurstSize:  messageBurstSize,
	}
}

func (c *Config) validate() error {
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}

	if len(c.Auth.TokenSecret) < 32 {
		return fmt.Errorf("TOKEN_SECRET must be at least 32 characters long")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if len(c.Game.PlayerColors) == 0 {
		return fmt.Errorf("GAME_PLAYER_COLORS must name at least one color")
	}

	if c.Lobby.MinReady < 2 {
		return fmt.Errorf("LOBBY_MIN_READY must be at least 2")
	}

	if c.Lobby.Capacity < c.Lobby.MinReady {
		return fmt.Errorf("LOBBY_CAPACITY must not be below LOBBY_MIN_READY")
	}

	if c.Game.TickInterval <= 0 {
		return fmt.Errorf("GAME_TICK_INTERVAL_MS must be positive")
	}

	return nil
}

// KVAddr returns the key-value endpoint in host:port form.
func (c *Config) KVAddr() string {
	return fmt.Sprintf("%s:%s", c.KV.Host, c.KV.Port)
}
