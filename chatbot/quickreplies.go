package chatbot

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultWelcome = `👋 Welcome to CloudHubibi! I'm your Go-to-Market Strategy assistant.

We help businesses accelerate growth through strategic market entry and expansion. How can I assist you today?`

// QuickReply maps a menu label to the text that is sent when it's chosen.
type QuickReply struct {
	Label string `yaml:"label"`
	Text  string `yaml:"text"`
}

type QuickReplies []QuickReply

func (q QuickReplies) Labels() (labels []string) {
	labels = make([]string, len(q))
	for i, qr := range q {
		labels[i] = qr.Label
	}
	return labels
}

// Text returns the outbound text for label. Labels that aren't in the
// table, or have no text, are sent as they are.
func (q QuickReplies) Text(label string) string {
	for _, qr := range q {
		if qr.Label == label && qr.Text != "" {
			return qr.Text
		}
	}
	return label
}

var DefaultQuickReplies = QuickReplies{
	{
		Label: "Run a 2-Minute GTM Mini-Scan",
		Text:  "I’d be happy to run a quick GTM Mini-Scan. Could you provide a bit of context about your current GTM strategy?",
	},
	{
		Label: "Diagnose My Revenue Leaks",
		Text:  "Let’s identify potential revenue leaks. Can you share details about your sales process and current challenges?",
	},
	{
		Label: "Architect My GTM System",
		Text:  "I can help you design a clear GTM blueprint. What are your key goals and target markets?",
	},
	{
		Label: "Scale My Operations",
		Text:  "Scaling operations requires efficiency and visibility. Can you describe your current team setup and tools?",
	},
	{
		Label: "Book a Free Consultation",
		Text:  "I'd be happy to connect you with our team. Could you please share your company name, industry, and main GTM challenge you're facing?",
	},
	{
		Label: "Learn About CloudHubibi's Approach",
		Text:  "CloudHubibi builds GTM strategies, CRM architecture, and funnel systems that convert demand into revenue. Would you like an overview?",
	},
}

// Script is the presentation data for a session: the welcome text and the
// quick-reply menu attached to it.
type Script struct {
	Welcome      string       `yaml:"welcome"`
	QuickReplies QuickReplies `yaml:"quickReplies"`
}

func DefaultScript() Script {
	return Script{
		Welcome:      DefaultWelcome,
		QuickReplies: DefaultQuickReplies,
	}
}

// LoadScript reads a YAML script. Missing fields keep their defaults.
func LoadScript(r io.Reader) (s Script, err error) {
	s = DefaultScript()
	var fromFile Script
	if err = yaml.NewDecoder(r).Decode(&fromFile); err != nil && err != io.EOF {
		return s, fmt.Errorf("failed to decode script: %w", err)
	}
	if fromFile.Welcome != "" {
		s.Welcome = fromFile.Welcome
	}
	if fromFile.QuickReplies != nil {
		s.QuickReplies = fromFile.QuickReplies
	}
	for i, qr := range s.QuickReplies {
		if qr.Label == "" {
			return s, fmt.Errorf("quick reply %d has no label", i)
		}
	}
	return s, nil
}

// LoadScriptFile reads a YAML script from name, or returns the default
// script if name is empty.
func LoadScriptFile(name string) (s Script, err error) {
	if name == "" {
		return DefaultScript(), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return s, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return LoadScript(f)
}
