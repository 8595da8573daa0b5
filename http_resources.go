package climb

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// MaxListLimit caps the page size of list endpoints
const MaxListLimit = 500

func (a *Controller) SessionList(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	records, err := a.Repo.Sessions().List(ctx.Context(), owner, opts)
	if err != nil {
		return resourceError(err, "failed to list sessions")
	}

	return ctx.JSON(http.StatusOK, records)
}

func (a *Controller) SessionCreate(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	payload := new(SessionPayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	record, err := a.Repo.Sessions().Create(ctx.Context(), owner, payload.Session())
	if err != nil {
		return resourceError(err, "failed to create session")
	}
	a.ownerActivity(ctx.Context(), ActivityEventSessionCreated, owner, ActivityMetaSessionID, record.ID)

	return ctx.JSON(http.StatusCreated, record)
}

func (a *Controller) SessionShow(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return err
	}

	record, err := a.Repo.Sessions().Get(ctx.Context(), owner, id)
	if err != nil {
		return resourceError(err, "failed to load session")
	}

	return ctx.JSON(http.StatusOK, record)
}

func (a *Controller) SessionUpdate(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return err
	}

	payload := new(SessionPayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	record := payload.Session()
	record.ID = id

	updated, err := a.Repo.Sessions().Update(ctx.Context(), owner, record)
	if err != nil {
		return resourceError(err, "failed to update session")
	}
	a.ownerActivity(ctx.Context(), ActivityEventSessionUpdated, owner, ActivityMetaSessionID, updated.ID)

	return ctx.JSON(http.StatusOK, updated)
}

func (a *Controller) SessionDelete(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return err
	}

	if err := a.Repo.Sessions().Delete(ctx.Context(), owner, id); err != nil {
		return resourceError(err, "failed to delete session")
	}
	a.ownerActivity(ctx.Context(), ActivityEventSessionDeleted, owner, ActivityMetaSessionID, id)

	return ctx.JSON(http.StatusOK, map[string]any{"message": "Session deleted"})
}

func (a *Controller) RouteList(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	records, err := a.Repo.Routes().List(ctx.Context(), owner, opts)
	if err != nil {
		return resourceError(err, "failed to list routes")
	}

	return ctx.JSON(http.StatusOK, records)
}

func (a *Controller) RouteCreate(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	payload := new(RoutePayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	record, err := a.Repo.Routes().Create(ctx.Context(), owner, payload.Route())
	if err != nil {
		return resourceError(err, "failed to create route")
	}
	a.ownerActivity(ctx.Context(), ActivityEventRouteCreated, owner, ActivityMetaRouteID, record.ID)

	return ctx.JSON(http.StatusCreated, record)
}

func (a *Controller) RouteShow(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return err
	}

	record, err := a.Repo.Routes().Get(ctx.Context(), owner, id)
	if err != nil {
		return resourceError(err, "failed to load route")
	}

	return ctx.JSON(http.StatusOK, record)
}

func (a *Controller) RouteUpdate(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return err
	}

	payload := new(RoutePayload)
	if err := parseBody(ctx, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	record := payload.Route()
	record.ID = id

	updated, err := a.Repo.Routes().Update(ctx.Context(), owner, record)
	if err != nil {
		return resourceError(err, "failed to update route")
	}
	a.ownerActivity(ctx.Context(), ActivityEventRouteUpdated, owner, ActivityMetaRouteID, updated.ID)

	return ctx.JSON(http.StatusOK, updated)
}

func (a *Controller) RouteDelete(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return err
	}

	if err := a.Repo.Routes().Delete(ctx.Context(), owner, id); err != nil {
		return resourceError(err, "failed to delete route")
	}
	a.ownerActivity(ctx.Context(), ActivityEventRouteDeleted, owner, ActivityMetaRouteID, id)

	return ctx.JSON(http.StatusOK, map[string]any{"message": "Route deleted"})
}

func (a *Controller) DashboardShow(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	summary, err := a.Dashboard.Summary(ctx.Context(), owner)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, summary)
}

func (a *Controller) CalendarShow(ctx router.Context) error {
	owner, err := OwnerID(ctx)
	if err != nil {
		return err
	}

	fields := map[string]string{}
	from, err := parseDate(ctx.Query("from", ""))
	if err != nil || from.IsZero() {
		fields["from"] = "must be a date in YYYY-MM-DD format"
	}
	to, err := parseDate(ctx.Query("to", ""))
	if err != nil || to.IsZero() {
		fields["to"] = "must be a date in YYYY-MM-DD format"
	}
	if len(fields) > 0 {
		return NewValidationError("invalid calendar query", fields)
	}

	days, err := a.Dashboard.Calendar(ctx.Context(), owner, from, to)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"from": dayKey(from),
		"to":   dayKey(to),
		"days": days,
	})
}

func listOptions(ctx router.Context) (ListOptions, error) {
	opts := ListOptions{}
	fields := map[string]string{}

	if raw := ctx.Query("from", ""); raw != "" {
		if from, err := parseDate(raw); err != nil {
			fields["from"] = "must be a date in YYYY-MM-DD or RFC3339 format"
		} else {
			opts.From = &from
		}
	}

	if raw := ctx.Query("to", ""); raw != "" {
		if to, err := parseDate(raw); err != nil {
			fields["to"] = "must be a date in YYYY-MM-DD or RFC3339 format"
		} else {
			to = startOfDay(to).AddDate(0, 0, 1)
			opts.To = &to
		}
	}

	if raw := ctx.Query("limit", ""); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxListLimit {
			fields["limit"] = "must be a number between 1 and " + strconv.Itoa(MaxListLimit)
		} else {
			opts.Limit = limit
		}
	}

	if len(fields) > 0 {
		return ListOptions{}, NewValidationError("invalid list query", fields)
	}

	return opts, nil
}

// ownerActivity records a logbook change made by owner
func (a *Controller) ownerActivity(ctx context.Context, eventType ActivityEventType, owner uuid.UUID, key string, id uuid.UUID) {
	recordActivity(ctx, a.ActivitySink, a.Logger, ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: owner.String(), Type: "user"},
		UserID:     owner.String(),
		Metadata:   map[string]any{key: id.String()},
		OccurredAt: a.Clock(),
	})
}
