package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cloudhubibi/gtmchat/handlers"
	chatpost "github.com/cloudhubibi/gtmchat/handlers/chat/post"
	"github.com/tmc/langchaingo/llms/openai"
)

type ServeCommand struct {
	OpenAIAPIKey     string  `help:"The API key for the completion API." env:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL    string  `help:"The base URL of the completion API, if not the OpenAI default." env:"OPENAI_BASE_URL" default:""`
	ChatModel        string  `help:"The model to chat with." env:"CHAT_MODEL" default:"gpt-4o-mini"`
	MaxTokens        int     `help:"The maximum number of tokens in a reply." env:"MAX_TOKENS" default:"500"`
	Temperature      float64 `help:"The sampling temperature." env:"TEMPERATURE" default:"0.7"`
	SystemPromptFile string  `help:"A file containing the system prompt to use." env:"SYSTEM_PROMPT_FILE" default:""`
	FallbackReply    string  `help:"The reply used when the model returns no text. Defaults to a generic GTM greeting." env:"FALLBACK_REPLY" default:""`
	ListenAddr       string  `help:"The address to listen on." env:"LISTEN_ADDR" default:":3001"`
	Port             string  `help:"Overrides the port of the listen address." env:"PORT" default:""`
	TLSCertFile      string  `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile       string  `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	LogLevel         string  `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

const systemPrompt = `You are a professional AI assistant for CloudHubibi (https://www.cloudhubibi.com/).

Mission:
Help potential clients understand CloudHubibi's GTM services, strategic market entry, and business growth.

Services:
- GTM Strategy Development
- Market Research & Analysis
- Product Positioning & Messaging
- Sales Strategy & Process Optimization
- Digital Marketing & Lead Generation
- Business Growth Consulting
- Market Entry Planning

Rules:
- Keep answers concise, business-focused, strategic.
- Pricing: customized packages, suggest a discovery call.
- Case studies: mention 2-5x growth.
- Booking consultation: ask company name, industry, GTM challenge.
- Non-business questions: redirect politely.

Tone:
- Professional, strategic, results-oriented.
- Highlight ROI, scalability, revenue growth.`

func readFileOrDefault(filename, defaultContent string) (string, error) {
	if filename == "" {
		return defaultContent, nil
	}
	contents, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return string(contents), nil
}

func listenAddr(addr, port string) (string, error) {
	if port == "" {
		return addr, nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return net.JoinHostPort(host, port), nil
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	systemPrompt, err := readFileOrDefault(c.SystemPromptFile, systemPrompt)
	if err != nil {
		return fmt.Errorf("failed to read system prompt: %w", err)
	}
	addr, err := listenAddr(c.ListenAddr, c.Port)
	if err != nil {
		return err
	}

	log.Info("creating LLM client", slog.String("model", c.ChatModel), slog.Bool("apiKeyConfigured", c.OpenAIAPIKey != ""))
	opts := []openai.Option{
		openai.WithModel(c.ChatModel),
		openai.WithHTTPClient(&http.Client{}),
	}
	if c.OpenAIAPIKey != "" {
		opts = append(opts, openai.WithToken(c.OpenAIAPIKey))
	}
	if c.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.OpenAIBaseURL))
	}
	llmc, err := openai.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create LLM: %w", err)
	}

	h := handlers.New(log, llmc, chatpost.Options{
		SystemPrompt:  systemPrompt,
		Model:         c.ChatModel,
		MaxTokens:     c.MaxTokens,
		Temperature:   c.Temperature,
		FallbackReply: c.FallbackReply,
	})

	s := &http.Server{
		Addr:    addr,
		Handler: h,
	}
	useTLS := c.TLSCertFile != "" && c.TLSKeyFile != ""
	if useTLS {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("Listening", slog.String("addr", addr))
		if useTLS {
			errs <- s.ListenAndServeTLS("", "")
			return
		}
		errs <- s.ListenAndServe()
	}()

	select {
	case err = <-errs:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err = s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}
