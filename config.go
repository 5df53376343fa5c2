package nutrivision

type ModelConfig struct {
	Provider    string  `env:"LLM_PROVIDER,default=ollama"`
	ModelID     string  `env:"MODEL_ID,required"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AssistantConfig struct {
	FoodNamesPath       string   `env:"REFERENCE_FOOD_NAMES_PATH,default=artifacts/foodname_EN.csv"`
	ComponentValuesPath string   `env:"REFERENCE_COMPONENT_VALUES_PATH,default=artifacts/component_value.csv"`
	RecipesPath         string   `env:"REFERENCE_RECIPES_PATH,default=artifacts/recipes.csv"`
	ReferenceEncoding   string   `env:"REFERENCE_ENCODING,default=latin1"`
	ReferenceS3Bucket   string   `env:"REFERENCE_S3_BUCKET"`
	BaseOllamaEndpoint  string   `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	RecognitionEndpoint string   `env:"RECOGNITION_ENDPOINT"`
	FuzzyThreshold      float64  `env:"FUZZY_MATCH_THRESHOLD,default=0.80"`
	ConfidenceThreshold float64  `env:"RECOGNITION_CONFIDENCE_THRESHOLD,default=0.75"`
	HistoryTurns        int      `env:"HISTORY_TURNS,default=10"`
	IgnoredMentions     []string `env:"IGNORED_MENTIONS,default=meal;breakfast;lunch;dinner;snack;food;drink;dish"`
	TurnLogPath         string   `env:"TURN_LOG_PATH"`
}

type StoreConfig struct {
	Backend       string `env:"CHAT_STORE,default=memory"`
	SQLitePath    string `env:"SQLITE_PATH,default=data/nutrivision.db"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	ImageDir      string `env:"IMAGE_DIR,default=uploads"`
	ImageS3Bucket string `env:"IMAGE_S3_BUCKET"`
}

type ServerConfig struct {
	Addr           string   `env:"HTTP_ADDR,default=:8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	MaxImageMB     int64    `env:"MAX_IMAGE_MB,default=10"`
}
