package model

import (
	"encoding/json"
	"fmt"
)

// Messages cross a serialization boundary when a thread is checkpointed.
// Content blocks round-trip through a tagged envelope so the variant decided
// at the provider boundary survives storage.

type messageEnvelope struct {
	Source       MessageSource   `json:"source"`
	Content      []blockEnvelope `json:"content"`
	FunctionCall *FunctionCall   `json:"function_call,omitempty"`
	Usage        Usage           `json:"usage"`
}

type blockEnvelope struct {
	Type   ContentBlockType `json:"type"`
	Text   string           `json:"text,omitempty"`
	ID     string           `json:"id,omitempty"`
	Tool   string           `json:"tool,omitempty"`
	Args   json.RawMessage  `json:"args,omitempty"`
	Result string           `json:"result,omitempty"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	envelope := messageEnvelope{
		Source:       m.Source,
		Content:      make([]blockEnvelope, 0, len(m.Content)),
		FunctionCall: m.FunctionCall,
		Usage:        m.Usage,
	}

	for _, block := range m.Content {
		switch block := block.(type) {
		case *TextBlock:
			envelope.Content = append(envelope.Content, blockEnvelope{
				Type: ContentBlockTypeText,
				Text: block.Text,
			})
		case *ToolCallBlock:
			envelope.Content = append(envelope.Content, blockEnvelope{
				Type: ContentBlockTypeToolCall,
				ID:   block.ID,
				Tool: block.Tool,
				Args: block.Args,
			})
		case *ToolResultBlock:
			envelope.Content = append(envelope.Content, blockEnvelope{
				Type:   ContentBlockTypeToolResult,
				ID:     block.ID,
				Tool:   block.Tool,
				Result: block.Result,
			})
		default:
			return nil, fmt.Errorf("unknown content block type: %T", block)
		}
	}

	return json.Marshal(envelope)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var envelope messageEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	content := make([]ContentBlock, 0, len(envelope.Content))
	for _, block := range envelope.Content {
		switch block.Type {
		case ContentBlockTypeText:
			content = append(content, &TextBlock{Text: block.Text})
		case ContentBlockTypeToolCall:
			content = append(content, &ToolCallBlock{
				ID:   block.ID,
				Tool: block.Tool,
				Args: block.Args,
			})
		case ContentBlockTypeToolResult:
			content = append(content, &ToolResultBlock{
				ID:     block.ID,
				Tool:   block.Tool,
				Result: block.Result,
			})
		default:
			return fmt.Errorf("unknown content block type: %q", block.Type)
		}
	}

	m.Source = envelope.Source
	m.Content = content
	m.FunctionCall = envelope.FunctionCall
	m.Usage = envelope.Usage
	return nil
}
