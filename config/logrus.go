package config

import (
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var (
	logrusInstance *logrus.Logger
	logrusOnce     sync.Once
)

func GetLogrusInstance() *logrus.Logger {
	logrusOnce.Do(func() {
		logrusInstance = logrus.New()
		logrusInstance.SetFormatter(&logrus.JSONFormatter{})
	})
	return logrusInstance
}

// PrintLogInfo writes the one-line request summary every handler emits.
func PrintLogInfo(username *string, statusCode int, functionName string) {
	user := "Unknown"
	if username != nil {
		user = *username
	}

	entry := GetLogrusInstance().WithFields(logrus.Fields{
		"user":     user,
		"handler":  functionName,
		"status":   statusCode,
		"response": http.StatusText(statusCode),
	})

	switch {
	case statusCode >= fiber.StatusInternalServerError:
		entry.Error("request failed")
	case statusCode >= fiber.StatusBadRequest:
		entry.Warn("request rejected")
	default:
		entry.Info("request handled")
	}
}
