package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type DB struct {
	Url             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"true"`
}

type Jwt struct {
	Secret string `envconfig:"SECRET" required:"true"`
	// UserClaim names the claim carrying the user id.
	UserClaim string `envconfig:"USER_CLAIM" default:"sub"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:""`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"usdledger:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Idempotency controls the Idempotency-Key response cache of write routes.
type Idempotency struct {
	TTL time.Duration `envconfig:"TTL" default:"24h"`
}

type EventBus struct {
	// Driver is one of memory, redis or kafka.
	Driver        string   `envconfig:"DRIVER" default:"memory"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic    string   `envconfig:"KAFKA_TOPIC" default:"usdledger.events"`
	KafkaGroupID  string   `envconfig:"KAFKA_GROUP_ID" default:"usdledger"`
	RedisGroup    string   `envconfig:"REDIS_GROUP" default:"usdledger"`
	RedisMaxRetry int      `envconfig:"REDIS_MAX_RETRY" default:"3"`
}

//revive:disable
type Circle struct {
	BaseURL   string   `envconfig:"BASE_URL" default:"https://api-sandbox.circle.com"`
	ApiKey    string   `envconfig:"API_KEY"`
	Countries []string `envconfig:"COUNTRIES" default:"US,GB,CA,DE,FR"`
}

type Stellar struct {
	AnchorURL  string   `envconfig:"ANCHOR_URL" default:"https://testanchor.stellar.org"`
	HorizonURL string   `envconfig:"HORIZON_URL" default:"https://horizon-testnet.stellar.org"`
	AuthToken  string   `envconfig:"AUTH_TOKEN"`
	Account    string   `envconfig:"ACCOUNT"`
	AssetCode  string   `envconfig:"ASSET_CODE" default:"USDC"`
	Countries  []string `envconfig:"COUNTRIES" default:"US,NG,GB,CA,BR"`
}

type Stripe struct {
	ApiKey        string   `envconfig:"API_KEY"`
	SigningSecret string   `envconfig:"SIGNING_SECRET"`
	BaseURL       string   `envconfig:"BASE_URL"`
	Countries     []string `envconfig:"COUNTRIES" default:"US,GB,CA,DE,FR,IE,NL,ES,IT,AU"`
}

type Reloadly struct {
	BaseURL   string   `envconfig:"BASE_URL" default:"https://topups-sandbox.reloadly.com"`
	Token     string   `envconfig:"TOKEN"`
	Countries []string `envconfig:"COUNTRIES" default:"US,NG,GH,KE,MX"`
}

//revive:enable

type Mock struct {
	Enabled bool `envconfig:"ENABLED" default:"false"`
}

type Gateways struct {
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"10s"`
	RetryAttempts  int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"200ms"`
	RetryMaxDelay  time.Duration `envconfig:"RETRY_MAX_DELAY" default:"2s"`
	// RequestsPerSecond is the per-gateway outbound rate; Burst its bucket size.
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND" default:"20"`
	Burst             int     `envconfig:"BURST" default:"5"`
	// CallbackSecret signs X-Signature on generic gateway webhooks.
	CallbackSecret string    `envconfig:"CALLBACK_SECRET"`
	Circle         *Circle   `envconfig:"CIRCLE"`
	Stellar        *Stellar  `envconfig:"STELLAR"`
	Stripe         *Stripe   `envconfig:"STRIPE"`
	Reloadly       *Reloadly `envconfig:"RELOADLY"`
	Mock           *Mock     `envconfig:"MOCK"`
}

// MaxGatewayTimeout caps Gateways.Timeout.
const MaxGatewayTimeout = 30 * time.Second

type FeeSchedule struct {
	Flat       decimal.Decimal `envconfig:"FLAT" default:"0"`
	Percentage decimal.Decimal `envconfig:"PERCENTAGE" default:"0"`
}

type Ledger struct {
	CommissionAccount string `envconfig:"COMMISSION_ACCOUNT" default:"commission"`
	CustodyAccount    string `envconfig:"CUSTODY_ACCOUNT" default:"custody"`
	// TransferFeeMode is sender_and_recipient or sender_only.
	TransferFeeMode string       `envconfig:"TRANSFER_FEE_MODE" default:"sender_and_recipient"`
	DepositFee      *FeeSchedule `envconfig:"FEE_DEPOSIT"`
	WithdrawalFee   *FeeSchedule `envconfig:"FEE_WITHDRAWAL"`
	TransferFee     *FeeSchedule `envconfig:"FEE_TRANSFER"`
	TopUpFee        *FeeSchedule `envconfig:"FEE_TOPUP"`
}

type Reconciliation struct {
	Schedule  string          `envconfig:"SCHEDULE" default:"@daily"`
	Tolerance decimal.Decimal `envconfig:"TOLERANCE" default:"0.01"`
	// Sources names the gateways whose pooled balances are summed.
	Sources []string `envconfig:"SOURCES" default:"circle,stellar"`
}

type Monitor struct {
	LargeAmount       decimal.Decimal `envconfig:"LARGE_AMOUNT" default:"10000"`
	Window            time.Duration   `envconfig:"WINDOW" default:"10m"`
	FrequencyLimit    int64           `envconfig:"FREQUENCY_LIMIT" default:"5"`
	HighRiskCountries []string        `envconfig:"HIGH_RISK_COUNTRIES" default:"KP,IR,SY,CU"`
}

type Poller struct {
	Schedule string        `envconfig:"SCHEDULE" default:"@every 1m"`
	MinAge   time.Duration `envconfig:"MIN_AGE" default:"2m"`
	Batch    int           `envconfig:"BATCH" default:"50"`
	// ReservedStaleAfter logs reserved rows that never reached the gateway.
	ReservedStaleAfter time.Duration `envconfig:"RESERVED_STALE_AFTER" default:"15m"`
}

type Notification struct {
	// AMQPURL enables the RabbitMQ notifier; empty logs notifications instead.
	AMQPURL    string `envconfig:"AMQP_URL"`
	Exchange   string `envconfig:"EXCHANGE" default:"usdledger.notifications"`
	RoutingKey string `envconfig:"ROUTING_KEY" default:"ops"`
}

type KYC struct {
	// URL of the identity service; empty allows every user.
	URL     string        `envconfig:"URL"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[usdledger]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env            string          `envconfig:"APP_ENV" default:"development"`
	Server         *Server         `envconfig:"SERVER"`
	Log            *Log            `envconfig:"LOG"`
	DB             *DB             `envconfig:"DATABASE"`
	Auth           *Auth           `envconfig:"AUTH"`
	Redis          *Redis          `envconfig:"REDIS"`
	RateLimit      *RateLimit      `envconfig:"RATE_LIMIT"`
	Idempotency    *Idempotency    `envconfig:"IDEMPOTENCY"`
	EventBus       *EventBus       `envconfig:"EVENT_BUS"`
	Gateways       *Gateways       `envconfig:"GATEWAY"`
	Ledger         *Ledger         `envconfig:"LEDGER"`
	Reconciliation *Reconciliation `envconfig:"RECONCILIATION"`
	Monitor        *Monitor        `envconfig:"MONITOR"`
	Poller         *Poller         `envconfig:"POLLER"`
	Notification   *Notification   `envconfig:"NOTIFICATION"`
	KYC            *KYC            `envconfig:"KYC"`
}
