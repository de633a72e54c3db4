package delivery

import (
	"errors"
	"fmt"

	"lecturenotify/config"
	"lecturenotify/domain"
	"lecturenotify/middleware"

	"github.com/asaskevich/govalidator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type notificationHandler struct {
	suc        domain.SettingsUseCase
	tuc        domain.TesterUseCase
	dispatcher domain.Dispatcher
	huc        domain.HistoryUseCase
	health     domain.HealthUseCase
}

func NewNotificationDelivery(app *fiber.App, suc domain.SettingsUseCase, tuc domain.TesterUseCase, dispatcher domain.Dispatcher, huc domain.HistoryUseCase, health domain.HealthUseCase) {
	handler := &notificationHandler{
		suc:        suc,
		tuc:        tuc,
		dispatcher: dispatcher,
		huc:        huc,
		health:     health,
	}

	anyone := middleware.RoleRequired(domain.RoleSuperAdmin, domain.RoleLecturer, domain.RoleStudent)

	route := app.Group("/api/settings/notifications", middleware.AuthRequired())
	route.Get("/", anyone, handler.GetSettings)
	route.Put("/", anyone, handler.UpsertSettings)
	route.Post("/test", anyone, handler.TestChannel)
	route.Post("/send", middleware.RoleRequired(domain.RoleSuperAdmin, domain.RoleSystem), handler.SendNotification)
	route.Get("/logs", anyone, handler.GetDeliveryLogs)
	route.Get("/audit", anyone, handler.GetAuditLogs)
	route.Get("/health", middleware.RoleRequired(domain.RoleSuperAdmin), handler.Health)
}

func (nh *notificationHandler) GetSettings(c *fiber.Ctx) error {
	userToken, _ := c.Locals("user").(*domain.Claims)

	ownerType, err := domain.ParseOwnerType(c.Query("owner_type"))
	if err != nil {
		return badRequest(c, userToken, "GetSettings", "Invalid owner type", err)
	}
	ownerID := c.QueryInt("owner_id", userToken.UserID)
	if !userToken.CanAccessOwner(ownerType, ownerID) {
		return forbidden(c, userToken, "GetSettings")
	}

	settings, err := nh.suc.GetSettings(c.UserContext(), ownerType, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			config.PrintLogInfo(&userToken.Username, fiber.StatusNotFound, "GetSettings")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Notification settings not found",
				"data":    nil,
			})
		}
		return internalError(c, userToken, "GetSettings", "Failed to retrieve notification settings", err)
	}

	config.PrintLogInfo(&userToken.Username, fiber.StatusOK, "GetSettings")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Notification settings retrieved successfully",
		"data":    nh.suc.MaskedView(settings),
	})
}

func (nh *notificationHandler) UpsertSettings(c *fiber.Ctx) error {
	userToken, _ := c.Locals("user").(*domain.Claims)

	var patch domain.SettingsPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, userToken, "UpsertSettings", "Invalid request body", err)
	}

	ownerType, err := domain.ParseOwnerType(string(patch.OwnerType))
	if err != nil {
		return badRequest(c, userToken, "UpsertSettings", "Invalid owner type", err)
	}
	patch.OwnerType = ownerType
	if patch.OwnerID == 0 {
		patch.OwnerID = userToken.UserID
	}

	if _, err := govalidator.ValidateStruct(patch); err != nil {
		return badRequest(c, userToken, "UpsertSettings", "Validation failed", err)
	}
	if !userToken.CanAccessOwner(patch.OwnerType, patch.OwnerID) {
		return forbidden(c, userToken, "UpsertSettings")
	}

	saved, err := nh.suc.UpsertSettings(c.UserContext(), &patch, userToken.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedChannel) || errors.Is(err, domain.ErrInvalidOwnerType) {
			return badRequest(c, userToken, "UpsertSettings", "Invalid notification settings", err)
		}
		return internalError(c, userToken, "UpsertSettings", "Failed to save notification settings", err)
	}

	config.PrintLogInfo(&userToken.Username, fiber.StatusOK, "UpsertSettings")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Notification settings saved successfully",
		"data":    nh.suc.MaskedView(saved),
	})
}

type testChannelRequest struct {
	OwnerType         string `json:"owner_type"`
	OwnerID           int    `json:"owner_id"`
	Provider          string `json:"provider"`
	TestTo            string `json:"test_to"`
	TestEmail         string `json:"test_email"`
	TestDeviceToken   string `json:"test_device_token"`
	TestCalendarEvent bool   `json:"test_calendar_event"`
}

func (r *testChannelRequest) address() string {
	switch domain.Channel(r.Provider) {
	case domain.ChannelSMS:
		return r.TestTo
	case domain.ChannelEmail:
		return r.TestEmail
	case domain.ChannelPush:
		return r.TestDeviceToken
	}
	return ""
}

func (nh *notificationHandler) TestChannel(c *fiber.Ctx) error {
	userToken, _ := c.Locals("user").(*domain.Claims)

	var body testChannelRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, userToken, "TestChannel", "Invalid request body", err)
	}

	ownerType, err := domain.ParseOwnerType(body.OwnerType)
	if err != nil {
		return badRequest(c, userToken, "TestChannel", "Invalid owner type", err)
	}
	ownerID := body.OwnerID
	if ownerID == 0 {
		ownerID = userToken.UserID
	}
	if !userToken.CanAccessOwner(ownerType, ownerID) {
		return forbidden(c, userToken, "TestChannel")
	}

	result, err := nh.tuc.TestChannel(c.UserContext(), &domain.TestRequest{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Channel:   domain.Channel(body.Provider),
		Address:   body.address(),
	})
	if err != nil {
		return internalError(c, userToken, "TestChannel", "Failed to test notification channel", err)
	}

	config.PrintLogInfo(&userToken.Username, fiber.StatusOK, "TestChannel")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": result.Success,
		"message": result.Message,
		"data":    result,
	})
}

func (nh *notificationHandler) SendNotification(c *fiber.Ctx) error {
	userToken, _ := c.Locals("user").(*domain.Claims)

	var req domain.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, userToken, "SendNotification", "Invalid request body", err)
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		return badRequest(c, userToken, "SendNotification", "Validation failed", err)
	}
	if req.Payload == nil {
		return badRequest(c, userToken, "SendNotification", "Validation failed", errors.New("payload is required"))
	}
	if len(req.Channels) == 0 {
		req.Channels = domain.AllChannels
	}

	if err := nh.dispatcher.Dispatch(c.UserContext(), &req); err != nil {
		if errors.Is(err, domain.ErrUnsupportedChannel) {
			return badRequest(c, userToken, "SendNotification", "Unsupported channel", err)
		}
		return internalError(c, userToken, "SendNotification", "Failed to dispatch notification", err)
	}

	config.PrintLogInfo(&userToken.Username, fiber.StatusAccepted, "SendNotification")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Notification dispatched",
		"data": fiber.Map{
			"user_id":     req.UserID,
			"schedule_id": req.ScheduleID,
			"channels":    req.Channels,
		},
	})
}

// historyOwner resolves the user_id query parameter, defaulting to the
// caller. Only super admins may read another user's history.
func historyOwner(c *fiber.Ctx, userToken *domain.Claims) (int, bool) {
	userID := c.QueryInt("user_id", userToken.UserID)
	return userID, userID == userToken.UserID || userToken.Role == domain.RoleSuperAdmin
}

func (nh *notificationHandler) GetDeliveryLogs(c *fiber.Ctx) error {
	userToken, _ := c.Locals("user").(*domain.Claims)

	userID, ok := historyOwner(c, userToken)
	if !ok {
		return forbidden(c, userToken, "GetDeliveryLogs")
	}

	logs, err := nh.huc.DeliveryLogs(c.UserContext(), userID, c.QueryInt("limit"))
	if err != nil {
		return internalError(c, userToken, "GetDeliveryLogs", "Failed to retrieve delivery logs", err)
	}

	config.PrintLogInfo(&userToken.Username, fiber.StatusOK, "GetDeliveryLogs")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Delivery logs retrieved successfully",
		"data":    logs,
	})
}

func (nh *notificationHandler) GetAuditLogs(c *fiber.Ctx) error {
	userToken, _ := c.Locals("user").(*domain.Claims)

	userID, ok := historyOwner(c, userToken)
	if !ok {
		return forbidden(c, userToken, "GetAuditLogs")
	}

	entries, err := nh.huc.AuditLogs(c.UserContext(), userID, c.QueryInt("limit"))
	if err != nil {
		return internalError(c, userToken, "GetAuditLogs", "Failed to retrieve audit logs", err)
	}

	config.PrintLogInfo(&userToken.Username, fiber.StatusOK, "GetAuditLogs")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Audit logs retrieved successfully",
		"data":    entries,
	})
}

func (nh *notificationHandler) Health(c *fiber.Ctx) error {
	userToken, _ := c.Locals("user").(*domain.Claims)

	report := nh.health.Check(c.UserContext())
	status := fiber.StatusOK
	if report.Status != "ok" {
		status = fiber.StatusServiceUnavailable
	}

	config.PrintLogInfo(&userToken.Username, status, "Health")
	return c.Status(status).JSON(fiber.Map{
		"success": status == fiber.StatusOK,
		"message": fmt.Sprintf("Service is %s", report.Status),
		"data":    report,
	})
}

func badRequest(c *fiber.Ctx, userToken *domain.Claims, fn, message string, err error) error {
	config.PrintLogInfo(&userToken.Username, fiber.StatusBadRequest, fn)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}

func forbidden(c *fiber.Ctx, userToken *domain.Claims, fn string) error {
	config.PrintLogInfo(&userToken.Username, fiber.StatusForbidden, fn)
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"success": false,
		"message": "You are not allowed to access these notification settings",
		"error":   domain.ErrForbidden.Error(),
	})
}

func internalError(c *fiber.Ctx, userToken *domain.Claims, fn, message string, err error) error {
	config.PrintLogInfo(&userToken.Username, fiber.StatusInternalServerError, fn)
	log.Error(fmt.Sprintf("User: %s => %s: %v", userToken.Username, message, err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}
