// handlers/engine_routes.go
package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bix-reward-engine/middleware"
	"bix-reward-engine/services"

	"github.com/gofiber/fiber/v2"
)

// EngineDeps bundles everything the action handlers dispatch into.
type EngineDeps struct {
	Limiter   *services.RateLimiter
	Ledger    *services.LedgerService
	Codes     *services.CodeService
	Referrals *services.ReferralService
	Tasks     *services.TaskService
	Quiz      *services.QuizService
	Games     *services.GameService
	Pending   *services.PendingService
	Admin     *services.AdminService
}

// engineRequest is the union of every action's fields; the action decides
// which ones it reads. Field names follow the public wire format.
type engineRequest struct {
	Action string `json:"action"`

	ReferralCode string `json:"referralCode"`
	TaskID       string `json:"taskId"`
	Code         string `json:"code"`

	QuestionCount  int      `json:"questionCount"`
	Difficulty     string   `json:"difficulty"`
	SessionID      string   `json:"sessionId"`
	QuestionID     string   `json:"questionId"`
	SelectedOption *int     `json:"selectedOption"`
	TimeTaken      *float64 `json:"timeTaken"`

	GameType  string `json:"gameType"`
	BetAmount int64  `json:"betAmount"`

	ValidHours     int    `json:"validHours"`
	MaxRedemptions *int   `json:"maxRedemptions"`
	WindowID       string `json:"windowId"`
	ActiveOnly     *bool  `json:"activeOnly"`

	FlagID   string              `json:"flagId"`
	IsActive *bool               `json:"isActive"`
	Task     *services.TaskInput `json:"task"`
}

// callerContext is derived per request from gateway headers.
type callerContext struct {
	UserID     string
	IPHash     string
	DeviceHash string
	UserAgent  string
}

type actionFunc func(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error)

// actionSpec is one entry in the closed action registry: its handler, whether
// it is admin-gated, and its per-user rate limit.
type actionSpec struct {
	handle    actionFunc
	admin     bool
	perMinute int
}

const defaultActionRate = 10

func buildActionRegistry() map[string]actionSpec {
	registry := map[string]actionSpec{
		"process_referral": {handle: doProcessReferral},
		"complete_task":    {handle: doCompleteTask},
		"daily_checkin":    {handle: doDailyCheckin},
		"start_quiz":       {handle: doStartQuiz},
		"quiz_answer":      {handle: doQuizAnswer, perMinute: 30},
		"finish_quiz":      {handle: doFinishQuiz},
		"game_result":      {handle: doGameResult},
		"redeem_task_code": {handle: doRedeemCode},

		"get_pending_rewards": {handle: doGetPendingRewards},

		"admin_generate_code_window": {handle: doGenerateCodeWindow, admin: true},
		"admin_list_code_windows":    {handle: doListCodeWindows, admin: true},
		"admin_disable_code_window":  {handle: doDisableCodeWindow, admin: true},
		"admin_get_metrics":          {handle: doGetMetrics, admin: true},
		"admin_get_abuse_flags":      {handle: doGetAbuseFlags, admin: true},
		"admin_resolve_flag":         {handle: doResolveFlag, admin: true},
		"admin_create_task":          {handle: doCreateTask, admin: true},
		"admin_toggle_task":          {handle: doToggleTask, admin: true},
		"admin_delete_task":          {handle: doDeleteTask, admin: true},
	}

	// Legacy aliases kept for older clients
	registry["verify_reward_code"] = registry["redeem_task_code"]
	registry["admin_generate_code"] = registry["admin_generate_code_window"]
	return registry
}

var actionRegistry = buildActionRegistry()

// isCodeRedemption covers both the canonical action name and its alias, which
// share the stricter per-IP rate policy.
func isCodeRedemption(action string) bool {
	return action == "redeem_task_code" || action == "verify_reward_code"
}

// SetupEngineRoutes wires the single action-dispatched endpoint plus the
// profile fetch path.
func SetupEngineRoutes(app *fiber.App, deps *EngineDeps) {
	engine := app.Group("/engine", middleware.UserContextMiddleware())

	engine.Post("/", deps.handleAction)
	engine.Get("/profile", deps.handleGetProfile)
}

func (d *EngineDeps) handleAction(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req engineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	spec, ok := actionRegistry[req.Action]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid action"})
	}

	ctx := callerContext{
		UserID:     userID,
		IPHash:     services.HashIP(clientIP(c)),
		DeviceHash: c.Get("X-Device-Hash"),
		UserAgent:  c.Get("User-Agent"),
	}

	// Code attempts get a stricter per-IP window plus the lockout check
	if isCodeRedemption(req.Action) {
		if !d.Limiter.Allow("code_ip:"+ctx.IPHash, 5, time.Minute) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many code attempts. Wait a minute."})
		}
		if d.Limiter.IsLockedOut("lockout:" + userID) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Account temporarily locked due to too many failed attempts."})
		}
	}

	perMinute := spec.perMinute
	if perMinute == 0 {
		perMinute = defaultActionRate
	}
	if !d.Limiter.Allow(userID+":"+req.Action, perMinute, time.Minute) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Rate limited. Try again later."})
	}

	// Opportunistic sweep of the caller's due delayed rewards and commissions
	d.Pending.SweepUser(userID)

	if spec.admin {
		isAdmin, err := d.Ledger.IsAdmin(userID)
		if err != nil {
			return d.fail(c, err)
		}
		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admin access required"})
		}
	}

	result, err := spec.handle(d, ctx, &req)
	if err != nil {
		return d.fail(c, err)
	}

	result["success"] = true
	return c.JSON(result)
}

func (d *EngineDeps) handleGetProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	d.Pending.SweepUser(userID)
	profile, err := d.Ledger.EnsureProfile(userID)
	if err != nil {
		return d.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "profile": profile})
}

// fail maps business errors to their status and hides everything else behind
// a generic 500.
func (d *EngineDeps) fail(c *fiber.Ctx, err error) error {
	var engineErr *services.EngineError
	if errors.As(err, &engineErr) {
		return c.Status(engineErr.Status).JSON(fiber.Map{"error": engineErr.Message})
	}
	log.Printf("[Engine] Internal error on %s for %v: %v", c.Path(), c.Locals("user_id"), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

// clientIP prefers the first forwarded hop over the socket peer.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

// --- User actions ---

func doProcessReferral(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	result, err := d.Referrals.ProcessReferral(ctx.UserID, req.ReferralCode, ctx.IPHash)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"newUserReward": result.NewUserReward,
		"newBalance":    result.NewBalance,
		"newLevel":      result.NewLevel,
		"leveledUp":     result.LeveledUp,
		"message":       result.Message,
	}, nil
}

func doCompleteTask(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	result, err := d.Tasks.CompleteTask(ctx.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"reward":     result.Reward,
		"xp":         result.XP,
		"newBalance": result.NewBalance,
		"newLevel":   result.NewLevel,
		"leveledUp":  result.LeveledUp,
		"message":    result.Message,
	}, nil
}

func doDailyCheckin(d *EngineDeps, ctx callerContext, _ *engineRequest) (fiber.Map, error) {
	result, err := d.Tasks.DailyCheckin(ctx.UserID)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"reward":     result.Reward,
		"streak":     result.Streak,
		"multiplier": result.Multiplier,
		"xp":         result.XP,
		"newBalance": result.NewBalance,
		"newLevel":   result.NewLevel,
		"leveledUp":  result.LeveledUp,
		"message":    result.Message,
	}, nil
}

func doStartQuiz(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	result, err := d.Quiz.Start(ctx.UserID, req.QuestionCount, req.Difficulty)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"sessionId":      result.SessionID,
		"questions":      result.Questions,
		"totalQuestions": result.TotalQuestions,
	}, nil
}

func doQuizAnswer(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	if req.SelectedOption == nil {
		return nil, &services.EngineError{Status: fiber.StatusBadRequest, Message: "Missing required fields"}
	}
	result, err := d.Quiz.Answer(ctx.UserID, req.SessionID, req.QuestionID, *req.SelectedOption, req.TimeTaken)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"isCorrect":      result.IsCorrect,
		"correctOption":  result.CorrectOption,
		"earned":         result.Earned,
		"sessionScore":   result.SessionScore,
		"sessionEarned":  result.SessionEarned,
		"answeredCount":  result.AnsweredCount,
		"totalQuestions": result.TotalQuestions,
	}, nil
}

func doFinishQuiz(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	result, err := d.Quiz.Finish(ctx.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"score":          result.Score,
		"totalQuestions": result.TotalQuestions,
		"totalReward":    result.TotalReward,
		"bonusReward":    result.BonusReward,
		"xp":             result.XP,
		"newBalance":     result.NewBalance,
		"newLevel":       result.NewLevel,
		"leveledUp":      result.LeveledUp,
		"isPerfect":      result.IsPerfect,
		"message":        result.Message,
	}, nil
}

func doGameResult(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	result, err := d.Games.Play(ctx.UserID, req.GameType, req.BetAmount)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"multiplier": result.Multiplier,
		"netChange":  result.NetChange,
		"newBalance": result.NewBalance,
		"message":    result.Message,
	}, nil
}

func doRedeemCode(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	result, err := d.Codes.Redeem(ctx.UserID, req.Code, ctx.IPHash, ctx.DeviceHash, ctx.UserAgent)
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"reward":     result.Reward,
		"multiplier": result.Multiplier,
		"newBalance": result.NewBalance,
		"newLevel":   result.NewLevel,
		"leveledUp":  result.LeveledUp,
		"message":    result.Message,
	}, nil
}

func doGetPendingRewards(d *EngineDeps, ctx callerContext, _ *engineRequest) (fiber.Map, error) {
	pending, err := d.Pending.ListPending(ctx.UserID)
	if err != nil {
		return nil, err
	}
	return fiber.Map{"pending": pending}, nil
}

// --- Admin actions ---

func doGenerateCodeWindow(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	window, err := d.Codes.GenerateWindow(ctx.UserID, req.TaskID, req.ValidHours, req.MaxRedemptions)
	if err != nil {
		return nil, err
	}
	maxRedemptions := interface{}("unlimited")
	if window.MaxRedemptions != nil {
		maxRedemptions = *window.MaxRedemptions
	}
	validHours := int(window.ValidUntil.Sub(window.ValidFrom).Hours())
	return fiber.Map{
		"windowId":       window.ID,
		"code":           window.Code,
		"validFrom":      window.ValidFrom,
		"validUntil":     window.ValidUntil,
		"maxRedemptions": maxRedemptions,
		"message":        fmt.Sprintf("Code %s generated. Valid for %d hours.", window.Code, validHours),
	}, nil
}

func doListCodeWindows(d *EngineDeps, _ callerContext, req *engineRequest) (fiber.Map, error) {
	activeOnly := true
	if req.ActiveOnly != nil {
		activeOnly = *req.ActiveOnly
	}
	windows, err := d.Codes.ListWindows(activeOnly)
	if err != nil {
		return nil, err
	}
	return fiber.Map{"windows": windows}, nil
}

func doDisableCodeWindow(d *EngineDeps, _ callerContext, req *engineRequest) (fiber.Map, error) {
	if err := d.Codes.DisableWindow(req.WindowID); err != nil {
		return nil, err
	}
	return fiber.Map{"message": "Code window disabled"}, nil
}

func doGetMetrics(d *EngineDeps, _ callerContext, _ *engineRequest) (fiber.Map, error) {
	report, err := d.Admin.GetMetrics()
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"metrics":         report.Metrics,
		"totalUsers":      report.TotalUsers,
		"flaggedAccounts": report.FlaggedAccounts,
	}, nil
}

func doGetAbuseFlags(d *EngineDeps, _ callerContext, _ *engineRequest) (fiber.Map, error) {
	flags, err := d.Admin.GetAbuseFlags()
	if err != nil {
		return nil, err
	}
	return fiber.Map{"flags": flags}, nil
}

func doResolveFlag(d *EngineDeps, ctx callerContext, req *engineRequest) (fiber.Map, error) {
	if err := d.Admin.ResolveFlag(req.FlagID, ctx.UserID); err != nil {
		return nil, err
	}
	return fiber.Map{"message": "Flag resolved"}, nil
}

func doCreateTask(d *EngineDeps, _ callerContext, req *engineRequest) (fiber.Map, error) {
	if req.Task == nil {
		return nil, &services.EngineError{Status: fiber.StatusBadRequest, Message: "Task title is required"}
	}
	task, err := d.Tasks.CreateTask(*req.Task)
	if err != nil {
		return nil, err
	}
	return fiber.Map{"task": task, "message": "Task created"}, nil
}

func doToggleTask(d *EngineDeps, _ callerContext, req *engineRequest) (fiber.Map, error) {
	isActive := false
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	if err := d.Tasks.ToggleTask(req.TaskID, isActive); err != nil {
		return nil, err
	}
	return fiber.Map{"message": "Task status updated"}, nil
}

func doDeleteTask(d *EngineDeps, _ callerContext, req *engineRequest) (fiber.Map, error) {
	if req.TaskID == "" {
		return nil, &services.EngineError{Status: fiber.StatusBadRequest, Message: "Missing taskId"}
	}
	if err := d.Tasks.DeleteTask(req.TaskID); err != nil {
		return nil, err
	}
	return fiber.Map{"message": "Task deleted"}, nil
}
