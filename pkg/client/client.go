// Package client is a Go SDK for the humanarch API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/terra-clan/humanarch/internal/assessment"
	"github.com/terra-clan/humanarch/internal/models"
)

// Client is a Go SDK for the humanarch API
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLanguage sends lang as Accept-Language on every request
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// NewClient creates a new humanarch client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a failed request as reported by the server
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s - %s", e.Status, e.Code, e.Message)
}

// Assessment mirrors the server's assessment read model
type Assessment struct {
	Phase     models.AssessmentPhase `json:"phase"`
	Step      int                    `json:"step"`
	Total     int                    `json:"total"`
	Question  *models.Question       `json:"question,omitempty"`
	Answers   map[int]int            `json:"answers,omitempty"`
	Report    *assessment.Report     `json:"report,omitempty"`
	Diagnosis []models.Prescription  `json:"diagnosis,omitempty"`
}

type envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error"`
}

// call performs a request and decodes the data of the response envelope
func call[T any](ctx context.Context, c *Client, method, path string, in interface{}) (T, error) {
	var zero T

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return zero, err
	}

	var result envelope[T]
	if err := json.Unmarshal(resp, &result); err != nil {
		if status >= 400 {
			return zero, &APIError{Status: status, Code: "http_error", Message: string(resp)}
		}
		return zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		apiErr := result.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "unknown_error"}
		}
		apiErr.Status = status
		return zero, apiErr
	}

	return result.Data, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := call[map[string]string](ctx, c, http.MethodGet, "/health", nil)
	return err
}

// --- Sessions ---

// CreateSession opens a new session
func (c *Client) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error) {
	return call[*models.Session](ctx, c, http.MethodPost, "/api/v1/sessions", req)
}

// GetSession retrieves a session snapshot by ID
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return call[*models.Session](ctx, c, http.MethodGet, sessionPath(id, ""), nil)
}

// DeleteSession ends a session
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := call[map[string]string](ctx, c, http.MethodDelete, sessionPath(id, ""), nil)
	return err
}

// Route resolves a location fragment within the session
func (c *Client) Route(ctx context.Context, id, fragment string) (*models.RouteResponse, error) {
	return call[*models.RouteResponse](ctx, c, http.MethodPost, sessionPath(id, "/route"), models.RouteRequest{Fragment: fragment})
}

// SetPreferences updates language and/or theme; empty fields are left alone
func (c *Client) SetPreferences(ctx context.Context, id string, req models.PreferencesRequest) (*models.PreferencesRequest, error) {
	return call[*models.PreferencesRequest](ctx, c, http.MethodPut, sessionPath(id, "/preferences"), req)
}

// --- Assessment ---

// GetAssessment returns the assessment state of a session
func (c *Client) GetAssessment(ctx context.Context, id string) (*Assessment, error) {
	return call[*Assessment](ctx, c, http.MethodGet, sessionPath(id, "/assessment"), nil)
}

// StartAssessment leaves the intro screen
func (c *Client) StartAssessment(ctx context.Context, id string) (*Assessment, error) {
	return call[*Assessment](ctx, c, http.MethodPost, sessionPath(id, "/assessment/start"), nil)
}

// Answer records value (1..5) for a question
func (c *Client) Answer(ctx context.Context, id string, questionID, value int) (*Assessment, error) {
	req := models.AnswerRequest{QuestionID: questionID, Value: value}
	return call[*Assessment](ctx, c, http.MethodPost, sessionPath(id, "/assessment/answer"), req)
}

// Revisit moves back to an already reached question
func (c *Client) Revisit(ctx context.Context, id string, step int) (*Assessment, error) {
	req := map[string]int{"step": step}
	return call[*Assessment](ctx, c, http.MethodPost, sessionPath(id, "/assessment/revisit"), req)
}

// ResetAssessment discards the result and returns to the intro
func (c *Client) ResetAssessment(ctx context.Context, id string) (*Assessment, error) {
	return call[*Assessment](ctx, c, http.MethodPost, sessionPath(id, "/assessment/reset"), nil)
}

// --- Cart and checkout ---

// GetCart returns the cart of a session
func (c *Client) GetCart(ctx context.Context, id string) (*models.CartResponse, error) {
	return call[*models.CartResponse](ctx, c, http.MethodGet, sessionPath(id, "/cart"), nil)
}

// AddToCart appends a product to the cart
func (c *Client) AddToCart(ctx context.Context, id, productID string) (*models.CartResponse, error) {
	return call[*models.CartResponse](ctx, c, http.MethodPost, sessionPath(id, "/cart"), models.AddToCartRequest{ProductID: productID})
}

// RemoveFromCart removes the cart line at index
func (c *Client) RemoveFromCart(ctx context.Context, id string, index int) (*models.CartResponse, error) {
	return call[*models.CartResponse](ctx, c, http.MethodDelete, sessionPath(id, "/cart/"+strconv.Itoa(index)), nil)
}

// ClearCart empties the cart
func (c *Client) ClearCart(ctx context.Context, id string) (*models.CartResponse, error) {
	return call[*models.CartResponse](ctx, c, http.MethodDelete, sessionPath(id, "/cart"), nil)
}

// Checkout starts the purchase of the cart. completeView may be empty.
func (c *Client) Checkout(ctx context.Context, id string, completeView models.View) (*models.Receipt, error) {
	req := models.CheckoutRequest{CompleteView: string(completeView)}
	return call[*models.Receipt](ctx, c, http.MethodPost, sessionPath(id, "/checkout"), req)
}

// GetCheckout returns the receipt of the latest purchase
func (c *Client) GetCheckout(ctx context.Context, id string) (*models.Receipt, error) {
	return call[*models.Receipt](ctx, c, http.MethodGet, sessionPath(id, "/checkout"), nil)
}

// --- Content ---

// Translations returns the UI strings for lang
func (c *Client) Translations(ctx context.Context, lang string) (map[string]string, error) {
	path := "/api/v1/content/translations"
	if lang != "" {
		path += "?lang=" + url.QueryEscape(lang)
	}
	result, err := call[struct {
		Translations map[string]string `json:"translations"`
	}](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return result.Translations, nil
}

// ListProducts returns the catalog, optionally filtered by category
func (c *Client) ListProducts(ctx context.Context, category string) ([]models.Product, error) {
	path := "/api/v1/content/products"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	result, err := call[struct {
		Products []models.Product `json:"products"`
	}](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return result.Products, nil
}

// GetProduct retrieves one product
func (c *Client) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	return call[*models.Product](ctx, c, http.MethodGet, "/api/v1/content/products/"+url.PathEscape(productID), nil)
}

// ListQuestions returns the assessment questions in order
func (c *Client) ListQuestions(ctx context.Context) ([]models.Question, error) {
	result, err := call[struct {
		Questions []models.Question `json:"questions"`
	}](ctx, c, http.MethodGet, "/api/v1/content/questions", nil)
	if err != nil {
		return nil, err
	}
	return result.Questions, nil
}

// ListPosts returns the journal, newest first
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	result, err := call[struct {
		Posts []models.Post `json:"posts"`
	}](ctx, c, http.MethodGet, "/api/v1/content/posts", nil)
	if err != nil {
		return nil, err
	}
	return result.Posts, nil
}

// GetPost retrieves one journal post
func (c *Client) GetPost(ctx context.Context, slug string) (*models.Post, error) {
	return call[*models.Post](ctx, c, http.MethodGet, "/api/v1/content/posts/"+url.PathEscape(slug), nil)
}

// --- Guild ---

// RegisterMember starts a guild registration. It completes asynchronously.
func (c *Client) RegisterMember(ctx context.Context, req models.RegisterMemberRequest) (*models.Member, error) {
	return call[*models.Member](ctx, c, http.MethodPost, "/api/v1/community/members", req)
}

// GetMember retrieves a guild member
func (c *Client) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	return call[*models.Member](ctx, c, http.MethodGet, "/api/v1/community/members/"+url.PathEscape(memberID), nil)
}

// Feed returns the newest guild posts
func (c *Client) Feed(ctx context.Context, limit int) ([]models.CommunityPost, error) {
	path := "/api/v1/community/posts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	result, err := call[struct {
		Posts []models.CommunityPost `json:"posts"`
	}](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return result.Posts, nil
}

// CreatePost posts to the guild board as a registered member
func (c *Client) CreatePost(ctx context.Context, req models.CreatePostRequest) (*models.CommunityPost, error) {
	return call[*models.CommunityPost](ctx, c, http.MethodPost, "/api/v1/community/posts", req)
}

// LikePost adds a like to a guild post
func (c *Client) LikePost(ctx context.Context, postID string) (*models.CommunityPost, error) {
	return call[*models.CommunityPost](ctx, c, http.MethodPost, "/api/v1/community/posts/"+url.PathEscape(postID)+"/like", nil)
}

func sessionPath(id, suffix string) string {
	return "/api/v1/sessions/" + url.PathEscape(id) + suffix
}

// doRequest performs an HTTP request and returns the status and body
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
