package executor

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"webreplay/internal/models"
)

// ChromePage drives a chromedp page tab.
type ChromePage struct {
	tab          context.Context
	inputTimeout time.Duration
}

// NewChromePage wraps the chromedp tab context. inputTimeout bounds how long
// Fill waits for its target element.
func NewChromePage(tab context.Context, inputTimeout time.Duration) *ChromePage {
	return &ChromePage{tab: tab, inputTimeout: inputTimeout}
}

// run executes actions on the tab, aborting when either the tab or ctx ends.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) MouseMove(ctx context.Context, x, y float64) error {
	return p.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (p *ChromePage) Click(ctx context.Context, x, y float64, button models.MouseButton) error {
	return p.run(ctx, chromedp.MouseClickXY(x, y, chromedp.ButtonType(mouseButton(button))))
}

func mouseButton(b models.MouseButton) input.MouseButton {
	switch b {
	case models.ButtonMiddle:
		return input.Middle
	case models.ButtonRight:
		return input.Right
	default:
		return input.Left
	}
}

func (p *ChromePage) KeyDown(ctx context.Context, key models.Key) error {
	def := keyDefinition(key.Key)
	typ := input.KeyRawDown
	if def.text != "" {
		typ = input.KeyDown
	}
	ev := input.DispatchKeyEvent(typ).
		WithKey(key.Key).
		WithCode(key.Code).
		WithWindowsVirtualKeyCode(def.windows).
		WithNativeVirtualKeyCode(def.windows)
	if def.text != "" {
		ev = ev.WithText(def.text).WithUnmodifiedText(def.text)
	}
	return p.run(ctx, ev)
}

func (p *ChromePage) KeyUp(ctx context.Context, key models.Key) error {
	def := keyDefinition(key.Key)
	return p.run(ctx, input.DispatchKeyEvent(input.KeyUp).
		WithKey(key.Key).
		WithCode(key.Code).
		WithWindowsVirtualKeyCode(def.windows).
		WithNativeVirtualKeyCode(def.windows))
}

// Fill sets the value of the first element matching selector. A missing element
// fails after the input timeout. An empty selector matches nothing and is a no-op.
func (p *ChromePage) Fill(ctx context.Context, selector, value string) error {
	if selector == "" {
		return nil
	}
	if p.inputTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.inputTimeout)
		defer cancel()
	}
	if err := p.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("set value of %q: %w", selector, err)
	}
	return nil
}

func (p *ChromePage) ScrollTo(ctx context.Context, x, y float64) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollTo(%f, %f)", x, y), nil))
}

func (p *ChromePage) ScrollPosition(ctx context.Context) (float64, float64, error) {
	var pos []float64
	if err := p.run(ctx, chromedp.Evaluate(`[window.scrollX, window.scrollY]`, &pos)); err != nil {
		return 0, 0, err
	}
	if len(pos) != 2 {
		return 0, 0, fmt.Errorf("unexpected scroll position %v", pos)
	}
	return pos[0], pos[1], nil
}

// ApplyScale scales the document body around its top-left corner.
func (p *ChromePage) ApplyScale(ctx context.Context, scale float64) error {
	script := fmt.Sprintf(`document.body.style.transformOrigin = "0 0"; document.body.style.transform = "scale(%f)";`, scale)
	return p.run(ctx, chromedp.Evaluate(script, nil))
}

type keyDef struct {
	text    string
	windows int64
}

// DOM key names of non-printing keys, mapped onto their kb runes.
var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Backspace":  kb.Backspace,
	"Escape":     kb.Escape,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
	"Shift":      kb.Shift,
	"Control":    kb.Control,
	"Alt":        kb.Alt,
	"Meta":       kb.Meta,
}

// keyDefinition resolves the text and virtual key code of a DOM key name. Keys
// kb does not know are sent by name only.
func keyDefinition(name string) keyDef {
	if r, ok := namedKeys[name]; ok {
		name = r
	}
	if utf8.RuneCountInString(name) != 1 {
		return keyDef{}
	}
	r, _ := utf8.DecodeRuneInString(name)
	k, ok := kb.Keys[r]
	if !ok {
		return keyDef{text: name}
	}
	def := keyDef{windows: k.Windows}
	if k.Print {
		def.text = k.Text
	}
	return def
}
