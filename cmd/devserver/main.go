package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"rentchat/domain"
)

type Config struct {
	Host       string        `env:"HOST,default=localhost"`
	Port       int           `env:"PORT,default=8080"`
	LogLevel   string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret  string        `env:"JWT_SECRET,default=dev-only-secret"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=24h"`
	SeedRooms  bool          `env:"SEED_ROOMS,default=true"`
	GinRelease bool          `env:"GIN_RELEASE,default=false"`
}

type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	store := NewStore(log)
	if config.SeedRooms {
		store.Seed()
	}
	hub := NewHub(log, store)

	if config.GinRelease {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/api/auth/token", issueToken(config))
	router.GET("/ws", serveWS(config, hub))

	api := router.Group("/api", authMiddleware(config))
	api.GET("/chat/rooms", listRooms(store))
	api.GET("/chat/rooms/:id/messages", listMessages(store))
	api.POST("/chat/rooms/:id/messages", postMessage(store, hub))
	api.POST("/chat/messages/:id/read", markRead(store))
	api.POST("/files", uploadFile(store))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Info("Dev chat backend listening", "address", address)
	return router.Run(address)
}

// issueToken hands out a signed dev token for any user id. This is a local
// fixture; there is no password.
func issueToken(config Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			UserID string `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims := Claims{
			UserID: body.UserID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(config.TokenTTL)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token signing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func parseToken(config Config, tokenStr string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token")
	}
	return claims.UserID, nil
}

func authMiddleware(config Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		userID, err := parseToken(config, strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("userId", userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString("userId")
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "30"))
	return page, size
}

func listRooms(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, size := pageParams(c)
		c.JSON(http.StatusOK, gin.H{"content": store.Rooms(currentUser(c), page, size)})
	}
}

func listMessages(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		page, size := pageParams(c)
		msgs, err := store.Messages(currentUser(c), domain.RoomID(room), page, size)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"content": msgs})
	}
}

func postMessage(store *Store, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}

		var body struct {
			MessageType   domain.MessageType `json:"messageType" binding:"required"`
			Content       string             `json:"content"`
			AttachmentRef string             `json:"attachmentRef"`
			ReplyTo       *int64             `json:"replyToMessageId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		msg, err := store.Append(domain.RoomID(room), currentUser(c), body.MessageType,
			body.Content, body.AttachmentRef, body.ReplyTo, time.Now())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		// REST sends reach push watchers too.
		hub.BroadcastMessage(c.Request.Context(), msg)
		c.JSON(http.StatusCreated, msg)
	}
}

func markRead(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
			return
		}
		room, err := strconv.ParseInt(c.Query("roomId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing roomId"})
			return
		}

		if err := store.MarkRead(currentUser(c), domain.RoomID(room), messageID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func uploadFile(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file part"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"fileId": store.SaveFile(file.Filename)})
	}
}

// serveWS authenticates via the token query param; the client's WebSocket
// dial cannot set headers.
func serveWS(config Config, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := parseToken(config, c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		hub.Serve(c.Request.Context(), c.Writer, c.Request, userID)
	}
}
