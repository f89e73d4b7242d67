package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/api/dto"
	"github.com/spec-kit/inspection-audit/internal/audit"
	"github.com/spec-kit/inspection-audit/internal/auth"
	"github.com/spec-kit/inspection-audit/internal/domain"
	"github.com/spec-kit/inspection-audit/internal/service"
	apperrors "github.com/spec-kit/inspection-audit/pkg/util/errorutil"
)

const defaultStreamKeepAlive = 15 * time.Second

// SessionFactory opens a fresh change-history session per stream.
type SessionFactory func() *audit.Session

// InspectionsHandler exposes inspections and their change history.
type InspectionsHandler struct {
	inspections *service.InspectionService
	newSession  SessionFactory
	logger      *zap.Logger
	keepAlive   time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

// NewInspectionsHandler constructs handler. keepAlive is the idle interval
// between stream comments; non-positive values use 15s.
func NewInspectionsHandler(inspections *service.InspectionService, newSession SessionFactory, keepAlive time.Duration, logger *zap.Logger) *InspectionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keepAlive <= 0 {
		keepAlive = defaultStreamKeepAlive
	}
	return &InspectionsHandler{
		inspections: inspections,
		newSession:  newSession,
		logger:      logger,
		keepAlive:   keepAlive,
		done:        make(chan struct{}),
	}
}

// Close ends every open change stream so the server can shut down.
func (h *InspectionsHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Get handles GET /inspections/:id.
func (h *InspectionsHandler) Get(c *fiber.Ctx) error {
	id, err := inspectionID(c)
	if err != nil {
		return err
	}
	insp, err := h.inspections.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInspectionResponse(insp)})
}

// UpdateStatus handles PATCH /inspections/:id/status.
func (h *InspectionsHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := inspectionID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.inspections.UpdateStatus(c.UserContext(), id, req.OverallStatus, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewInspectionResponse(result.Inspection),
		"meta": dto.OutcomeResponse{Outcome: string(result.Outcome)},
	})
}

// RecordChange handles POST /inspections/:id/changes.
func (h *InspectionsHandler) RecordChange(c *fiber.Ctx) error {
	id, err := inspectionID(c)
	if err != nil {
		return err
	}
	var req dto.RecordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	outcome, err := h.inspections.RecordChange(c.UserContext(), id, audit.Change{
		Actor:           actorFrom(c),
		FieldName:       req.FieldName,
		OldValue:        req.OldValue,
		NewValue:        req.NewValue,
		ChangeType:      req.ChangeType,
		ItemID:          req.ItemID,
		ItemDescription: req.ItemDescription,
	})
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if outcome == audit.OutcomeRecorded {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.OutcomeResponse{Outcome: string(outcome)}})
}

// ListChanges handles GET /inspections/:id/changes.
func (h *InspectionsHandler) ListChanges(c *fiber.Ctx) error {
	id, err := inspectionID(c)
	if err != nil {
		return err
	}
	entries, err := h.inspections.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Stream handles GET /inspections/:id/changes/stream. Every feed state of a
// dedicated session is pushed as a server-sent event until the client goes
// away.
func (h *InspectionsHandler) Stream(c *fiber.Ctx) error {
	id, err := inspectionID(c)
	if err != nil {
		return err
	}
	insp, err := h.inspections.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	actor := actorFrom(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	session := h.newSession()
	logger := h.logger.With(zap.String("session_id", session.ID()), zap.String("entity_id", id))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer session.Close()

		updates := make(chan audit.FetchState, 1)
		unobserve := session.Observe(func(state audit.FetchState) {
			offerLatest(updates, state)
		})
		defer unobserve()

		if err := session.Open(context.Background(), id, actor); err != nil {
			logger.Warn("change stream opened without realtime updates", zap.Error(err))
		}
		session.SeedEntity(audit.EntitySnapshot{
			EntityID:      insp.ID,
			OverallStatus: insp.OverallStatus,
			UpdatedAt:     insp.UpdatedAt,
		})
		if err := writeEvent(w, "state", session.State()); err != nil {
			return
		}

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case state := <-updates:
				if err := writeEvent(w, "state", state); err != nil {
					logger.Debug("change stream closed", zap.Error(err))
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("change stream closed", zap.Error(err))
					return
				}
			}
		}
	})
	return nil
}

// offerLatest keeps only the newest state queued for a slow client.
func offerLatest(ch chan audit.FetchState, state audit.FetchState) {
	for {
		select {
		case ch <- state:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func writeEvent(w *bufio.Writer, name string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, body); err != nil {
		return err
	}
	return w.Flush()
}

func inspectionID(c *fiber.Ctx) (string, error) {
	id := utils.CopyString(c.Params("id"))
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewValidationError("invalid inspection id", map[string]any{"id": id})
	}
	return id, nil
}

func actorFrom(c *fiber.Ctx) *domain.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return principal.Actor()
}
