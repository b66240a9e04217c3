package scraper

import (
	"regexp"
	"strings"
)

// BotDetector detects bot walls and CAPTCHAs on a rendered page
type BotDetector struct {
	botPatterns     []*regexp.Regexp
	captchaPatterns []*regexp.Regexp
	blockPatterns   []*regexp.Regexp
}

// BotVerdict is the result of scoring a page
type BotVerdict struct {
	IsBotWall bool
	BlockType string
	Reason    string
	Score     float64
}

// NewBotDetector creates a detector with English and Turkish markers
func NewBotDetector() *BotDetector {
	return &BotDetector{
		botPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)access denied`),
			regexp.MustCompile(`(?i)bot detected`),
			regexp.MustCompile(`(?i)please verify you are human`),
			regexp.MustCompile(`(?i)checking your browser`),
			regexp.MustCompile(`(?i)ddos protection`),
			regexp.MustCompile(`(?i)cloudflare`),
			regexp.MustCompile(`(?i)akamai`),
			regexp.MustCompile(`(?i)erişim engellendi`),
			regexp.MustCompile(`(?i)güvenlik kontrolü`),
			regexp.MustCompile(`(?i)olağandışı trafik`),
		},
		captchaPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)captcha`),
			regexp.MustCompile(`(?i)verify you are human`),
			regexp.MustCompile(`(?i)robot olmadığınızı`),
			regexp.MustCompile(`(?i)ben robot değilim`),
		},
		blockPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)403 forbidden`),
			regexp.MustCompile(`(?i)429 too many requests`),
			regexp.MustCompile(`(?i)503 service unavailable`),
			regexp.MustCompile(`(?i)çok fazla istek`),
		},
	}
}

// Inspect scores the page text and title for bot-wall markers
func (bd *BotDetector) Inspect(pageContent, pageTitle string) BotVerdict {
	content := strings.ToLower(pageContent + " " + pageTitle)

	score := 0.0
	var reasons []string

	for _, pattern := range bd.botPatterns {
		if pattern.MatchString(content) {
			score += 0.3
			reasons = append(reasons, pattern.String())
		}
	}

	captcha := false
	for _, pattern := range bd.captchaPatterns {
		if pattern.MatchString(content) {
			captcha = true
			score += 0.5
			reasons = append(reasons, "CAPTCHA detected: "+pattern.String())
		}
	}

	httpError := false
	for _, pattern := range bd.blockPatterns {
		if pattern.MatchString(content) {
			httpError = true
			score += 0.4
			reasons = append(reasons, "HTTP error: "+pattern.String())
		}
	}

	// challenge pages are tiny compared to a product page
	if len(content) < 1000 && score > 0 {
		score += 0.2
		reasons = append(reasons, "Very short content with bot indicators")
	}

	if score > 1.0 {
		score = 1.0
	}

	verdict := BotVerdict{
		IsBotWall: score > 0.3,
		Reason:    strings.Join(reasons, "; "),
		Score:     score,
	}
	switch {
	case !verdict.IsBotWall:
	case captcha:
		verdict.BlockType = "captcha"
	case httpError:
		verdict.BlockType = "http_error"
	default:
		verdict.BlockType = "bot_wall"
	}
	return verdict
}
