package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
	"github.com/tiberius19/canvas-core/internal/pkg/hcaptcha"
	"github.com/tiberius19/canvas-core/internal/pkg/jobqueue"
	"github.com/tiberius19/canvas-core/internal/pkg/notifications"
	"github.com/tiberius19/canvas-core/internal/pkg/usercontext"
	"github.com/tiberius19/canvas-core/internal/pkg/utils"
)

type registerRequest struct {
	Firstname    string `json:"firstname"`
	Lastname     string `json:"lastname"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	CompanyName  string `json:"company_name"`
	CaptchaToken string `json:"captcha_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRegister creates the user together with their default company, its
// billing group and a free-trial subscription in one transaction.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Request body is not valid JSON")
	}

	if hcaptcha.Enabled() {
		if ok, err := hcaptcha.Verify(req.CaptchaToken); !ok {
			log.Infof("[Auth] captcha verification failed: %v", err)
			return jsonError(c, fiber.StatusBadRequest, "captcha_failed", "Captcha verification failed")
		}
	}

	user, err := models.CreateUser(req.Firstname, req.Lastname, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	companyName := strings.TrimSpace(req.CompanyName)
	if companyName == "" {
		companyName = user.Displayname
	}

	db := database.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		company := &models.Company{Name: companyName, UsersID: user.ID}
		if err := company.Validate(); err != nil {
			return err
		}
		if err := tx.Create(company).Error; err != nil {
			return err
		}

		user.DefaultCompanyID = company.ID
		if err := tx.Model(user).Update("default_company_id", company.ID).Error; err != nil {
			return err
		}

		// The provider customer id is assigned on first checkout; until then
		// the group carries a local placeholder to satisfy the unique index.
		group := &models.CompanyGroup{
			Name:             companyName,
			UsersID:          user.ID,
			CompaniesID:      company.ID,
			StripeCustomerID: "local-" + uuid.New().String(),
		}
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		return tx.Create(models.NewTrialSubscription(group.ID, user.ID)).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "Duplicate entry") {
			return jsonError(c, fiber.StatusConflict, "conflict", "Email address is already registered")
		}
		log.Errorf("[Auth] registration for %s failed: %v", req.Email, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Registration failed")
	}

	sendUserMail(c.UserContext(), user, "users-welcome", "Welcome to "+models.GetAppSettings().AppName, nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                 user.ID,
		"email":              user.Email,
		"default_company_id": user.DefaultCompanyID,
	})
}

// HandleLogin verifies credentials and issues a token pair.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Request body is not valid JSON")
	}

	db := database.GetDB()
	user, err := models.GetUserByEmail(db, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid credentials")
	}
	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "User inactive")
	}

	session, err := models.StartSession(db, user, GetClientIP(c))
	if err != nil {
		log.Errorf("[Auth] starting session for user %d failed: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Login failed")
	}

	return c.JSON(sessionResponse(session))
}

// HandleRefresh exchanges a refresh token for a new token pair.
func HandleRefresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Refresh token is missing")
	}

	db := database.GetDB()
	var session models.Session
	err := db.Where("refresh_token = ? AND ended_at IS NULL", req.RefreshToken).First(&session).Error
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid refresh token")
	}

	user, err := models.GetUserByID(db, session.UsersID)
	if err != nil || !user.IsActive() {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid refresh token")
	}

	fresh, err := models.RestartSession(db, user, req.RefreshToken, GetClientIP(c))
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid refresh token")
	}

	return c.JSON(sessionResponse(fresh))
}

// HandleLogout ends all sessions of the authenticated user.
func HandleLogout(c *fiber.Ctx) error {
	userCtx := usercontext.Get(c)
	if err := models.EndSessions(database.GetDB(), userCtx.UserID); err != nil {
		log.Errorf("[Auth] logout for user %d failed: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Logout failed")
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// HandleMe returns the authenticated user's account.
func HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.Get(c)
	user, err := models.GetUserByID(database.GetDB(), userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
	}
	return c.JSON(fiber.Map{
		"user":       user,
		"avatar_url": utils.GetGravatarURL(user.Email, 200),
	})
}

// HandleForgotPassword mails a password recovery key. The response does not
// reveal whether the address exists.
func HandleForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Request body is not valid JSON")
	}

	db := database.GetDB()
	user, err := models.GetUserByEmail(db, strings.ToLower(strings.TrimSpace(req.Email)))
	if err == nil {
		if err := user.GenerateForgotHash(); err == nil {
			if err := db.Model(user).Update("user_activation_forgot", user.UserActivationForgot).Error; err == nil {
				sendUserMail(c.UserContext(), user, "users-forgot-password", "Password Recovery", map[string]interface{}{
					"key": user.UserActivationForgot,
				})
			}
		}
	}

	return c.JSON(fiber.Map{"message": "If the address exists, a recovery mail was sent"})
}

// HandleResetPassword sets a new password via a recovery key.
func HandleResetPassword(c *fiber.Ctx) error {
	var req struct {
		Key      string `json:"key"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil || req.Key == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Recovery key is missing")
	}

	db := database.GetDB()
	user, err := models.GetUserByForgotHash(db, req.Key)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Recovery key is invalid or expired")
	}

	if err := user.SetPassword(req.Password); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := user.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	err = db.Model(user).Updates(map[string]interface{}{
		"password":               user.Password,
		"user_activation_forgot": "",
	}).Error
	if err != nil {
		log.Errorf("[Auth] password reset for user %d failed: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Password reset failed")
	}

	// Every open session is closed so a stolen token dies with the password.
	if err := models.EndSessions(db, user.ID); err != nil {
		log.Warnf("[Auth] ending sessions for user %d failed: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{"message": "Password updated"})
}

// HandleRequestEmailChange stores the pending address and mails a
// confirmation key.
func HandleRequestEmailChange(c *fiber.Ctx) error {
	var req struct {
		NewEmail string `json:"new_email"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.NewEmail) == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "New email address is missing")
	}

	userCtx := usercontext.Get(c)
	db := database.GetDB()
	user, err := models.GetUserByID(db, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
	}

	if err := user.GenerateEmailChangeHash(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Email change failed")
	}

	newEmail := strings.ToLower(strings.TrimSpace(req.NewEmail))
	err = db.Model(user).Updates(map[string]interface{}{
		"pending_email":         newEmail,
		"user_activation_email": user.UserActivationEmail,
	}).Error
	if err != nil {
		log.Errorf("[Auth] email change request for user %d failed: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Email change failed")
	}

	sendUserMail(c.UserContext(), user, "users-email-change", "Confirm Your New Email Address", map[string]interface{}{
		"key":       user.UserActivationEmail,
		"new_email": newEmail,
	})

	return c.JSON(fiber.Map{"message": "Confirmation mail sent"})
}

// HandleConfirmEmailChange applies a pending email change via its key.
func HandleConfirmEmailChange(c *fiber.Ctx) error {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.BodyParser(&req); err != nil || req.Key == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Confirmation key is missing")
	}

	db := database.GetDB()
	user, err := models.GetUserByEmailChangeHash(db, req.Key)
	if err != nil || user.PendingEmail == "" {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Confirmation key is invalid or expired")
	}

	err = db.Model(user).Updates(map[string]interface{}{
		"email":                 user.PendingEmail,
		"pending_email":         "",
		"user_activation_email": "",
	}).Error
	if err != nil {
		log.Errorf("[Auth] email change for user %d failed: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Email change failed")
	}

	return c.JSON(fiber.Map{"message": "Email address updated"})
}

func sessionResponse(session *models.Session) fiber.Map {
	return fiber.Map{
		"token":                    session.Token,
		"token_expiration":         session.TokenExpiration,
		"refresh_token":            session.RefreshToken,
		"refresh_token_expiration": session.RefreshExpiration,
	}
}

// sendUserMail dispatches a templated notification; failures are logged and
// never fail the request.
func sendUserMail(ctx context.Context, user *models.User, templateName, subject string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["firstname"] = user.Firstname
	data["app_name"] = models.GetAppSettings().AppName

	dispatcher := notifications.NewDispatcher(database.GetDB(), jobqueue.GetManager().GetQueue())
	if err := dispatcher.Notify(ctx, user, templateName, subject, data); err != nil {
		log.Errorf("[Auth] sending %s mail to user %d failed: %v", templateName, user.ID, err)
	}
}
