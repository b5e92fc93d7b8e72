// Package notify предоставляет клиент SMS-шлюза Eskiz для уведомления покупателей.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized возвращается, когда шлюз отклонил учётные данные.
var ErrUnauthorized = errors.New("sms gateway: unauthorized")

// Client инкапсулирует HTTP-взаимодействие с SMS-шлюзом.
// Токен получается при первой отправке и обновляется один раз при ответе 401.
type Client struct {
	baseURL    string
	email      string
	password   string
	from       string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClient создаёт клиент шлюза по адресу и учётным данным.
func NewClient(baseURL, email, password, from string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		from:     from,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type loginResponse struct {
	Message string `json:"message"`
	Data    struct {
		Token string `json:"token"`
	} `json:"data"`
}

// SendSMS отправляет сообщение на номер в формате +998XXXXXXXXX.
func (c *Client) SendSMS(ctx context.Context, phone, text string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("sms client not configured")
	}

	token, err := c.currentToken(ctx)
	if err != nil {
		return err
	}

	err = c.send(ctx, token, phone, text)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	token, err = c.currentToken(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, token, phone, text)
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("email", c.email)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected login status: %d", resp.StatusCode)
	}

	var result loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Data.Token == "" {
		return "", fmt.Errorf("empty token in login response")
	}

	return result.Data.Token, nil
}

func (c *Client) send(ctx context.Context, token, phone, text string) error {
	form := url.Values{}
	form.Set("mobile_phone", strings.TrimPrefix(phone, "+"))
	form.Set("message", text)
	if c.from != "" {
		form.Set("from", c.from)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/message/sms/send", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
