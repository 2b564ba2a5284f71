package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/meigenapp/meigen/internal/auth"
	"github.com/meigenapp/meigen/internal/storage"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

type handler struct {
	store storage.Store
	auth  *auth.Service
}

func (h handler) register(e *echo.Echo, requireToken echo.MiddlewareFunc) {
	e.POST("/auth", h.registerAccount)
	e.POST("/auth/signin", h.signIn)
	e.PUT("/auth/password", h.changePassword, requireToken)

	quotes := e.Group("/quotes", requireToken)
	quotes.GET("", h.listQuotes)
	quotes.POST("", h.createQuote)
	quotes.GET("/:id", h.getQuote)
	quotes.PUT("/:id", h.updateQuote)
	quotes.DELETE("/:id", h.deleteQuote)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type quoteRequest struct {
	Text      string `json:"text"`
	Character string `json:"character"`
	Source    string `json:"source"`
}

type quoteResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Character string    `json:"character,omitempty"`
	Source    string    `json:"source,omitempty"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h handler) registerAccount(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	result, err := h.auth.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return toHTTPError(err)
	}

	// When register does not auto-authenticate, return the account resource
	// instead of a token.
	if result.Token == "" {
		return c.JSON(http.StatusCreated, accountResponse{
			ID:        result.Account.ID.Hex(),
			Email:     result.Account.Email,
			CreatedAt: result.Account.CreatedAt,
		})
	}
	return c.JSON(http.StatusCreated, tokenResponse{Token: result.Token})
}

func (h handler) signIn(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	token, err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (h handler) changePassword(c echo.Context) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	if err := h.auth.ChangeSecret(c.Request().Context(), auth.AccountID(c), req.Password); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handler) listQuotes(c echo.Context) error {
	afterID := primitive.NilObjectID
	if after := c.QueryParam("after"); after != "" {
		id, err := primitive.ObjectIDFromHex(after)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid after cursor")
		}
		afterID = id
	}

	limit := int32(defaultPageSize)
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 || parsed > maxPageSize {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = int32(parsed)
	}

	quotes, err := h.store.ListQuotes(c.Request().Context(), afterID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	resp := make([]quoteResponse, 0, len(quotes))
	for _, quote := range quotes {
		resp = append(resp, toQuoteResponse(quote))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h handler) createQuote(c echo.Context) error {
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "quote text is required")
	}

	quote, err := h.store.CreateQuote(c.Request().Context(), storage.Quote{
		Text:      req.Text,
		Character: req.Character,
		Source:    req.Source,
		Owner:     auth.AccountID(c),
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toQuoteResponse(quote))
}

func (h handler) getQuote(c echo.Context) error {
	id, err := quoteID(c)
	if err != nil {
		return err
	}
	quote, err := h.store.GetQuote(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toQuoteResponse(quote))
}

func (h handler) updateQuote(c echo.Context) error {
	id, err := quoteID(c)
	if err != nil {
		return err
	}
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "quote text is required")
	}

	quote, err := h.ownedQuote(c, id)
	if err != nil {
		return err
	}

	quote.Text = req.Text
	quote.Character = req.Character
	quote.Source = req.Source
	if err := h.store.UpdateQuote(c.Request().Context(), quote); err != nil {
		return toHTTPError(err)
	}

	updated, err := h.store.GetQuote(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toQuoteResponse(updated))
}

func (h handler) deleteQuote(c echo.Context) error {
	id, err := quoteID(c)
	if err != nil {
		return err
	}
	if _, err := h.ownedQuote(c, id); err != nil {
		return err
	}
	if err := h.store.DeleteQuote(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ownedQuote loads the quote and checks it belongs to the authenticated
// account. Mutations of someone else's quote are forbidden, not hidden.
func (h handler) ownedQuote(c echo.Context, id primitive.ObjectID) (storage.Quote, error) {
	quote, err := h.store.GetQuote(c.Request().Context(), id)
	if err != nil {
		return storage.Quote{}, toHTTPError(err)
	}
	if quote.Owner != auth.AccountID(c) {
		return storage.Quote{}, echo.NewHTTPError(http.StatusForbidden, "quote belongs to another account")
	}
	return quote, nil
}

func quoteID(c echo.Context) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "invalid quote id")
	}
	return id, nil
}

func toQuoteResponse(quote storage.Quote) quoteResponse {
	return quoteResponse{
		ID:        quote.ID.Hex(),
		Text:      quote.Text,
		Character: quote.Character,
		Source:    quote.Source,
		Owner:     quote.Owner.Hex(),
		CreatedAt: quote.CreatedAt,
		UpdatedAt: quote.UpdatedAt,
	}
}

// toHTTPError converts domain errors to echo HTTPErrors with the appropriate
// status code. Errors with no mapping pass through unchanged for echo's
// default 500 handling.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	switch {
	case errors.Is(err, storage.ErrInvalidEmail),
		errors.Is(err, auth.ErrPasswordRequired),
		errors.Is(err, auth.ErrPasswordTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrAuthenticationFailed):
		// The one message for every credential failure; never says which
		// field was wrong.
		return echo.NewHTTPError(http.StatusUnauthorized, auth.ErrAuthenticationFailed.Error())
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, storage.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, storage.ErrUnavailable.Error())
	default:
		return err
	}
}
