package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xyproto/env/v2"
	"github.com/xyproto/vt"
)

const (
	keyPgDn  = 250
	keyPgUp  = 251
	keyLeft  = 252
	keyUp    = 253
	keyRight = 254
	keyDown  = 255
)

func main() {
	pal := colorPalette()
	if env.Bool("NO_COLOR") {
		pal = monoPalette()
	}
	cs := newCalcState()

	var err error
	if env.Bool("RPNCALC_LINEMODE") {
		err = runLineMode(cs, os.Stdin, os.Stdout)
	} else {
		err = runCalcLoop(cs, pal)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rpncalc: %v\n", err)
		os.Exit(1)
	}
}

func runCalcLoop(cs *calcState, pal palette) error {
	tty, err := vt.NewTTY()
	if err != nil {
		fmt.Fprintf(os.Stderr, "TTY unavailable, switching to line mode: %v\n", err)
		return runLineMode(cs, os.Stdin, os.Stdout)
	}
	defer tty.Close()

	vt.Init()
	defer func() {
		vt.Close()
		fmt.Print(vt.Stop())
		fmt.Println()
	}()

	c := vt.NewCanvas()
	c.HideCursor()
	tty.SetTimeout(20 * time.Millisecond)

	keyCh := make(chan int, 32)
	stopCh := make(chan struct{})
	defer close(stopCh)
	go func() {
		pending := ""
		for {
			select {
			case <-stopCh:
				return
			default:
			}
			raw := tty.CustomString()
			if raw == "" {
				continue
			}
			keys, rest := parseTTYKeyStream(pending + raw)
			pending = rest
			for _, k := range keys {
				select {
				case keyCh <- k:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	draw(c, cs, pal)
	for range ticker.C {
		for {
			select {
			case k := <-keyCh:
				if handleKey(cs, k) {
					return nil
				}
			default:
				draw(c, cs, pal)
				goto nextFrame
			}
		}
	nextFrame:
	}
	return nil
}

// handleKey feeds one decoded key to the calculator. Returns true when
// the session should end.
func handleKey(cs *calcState, key int) bool {
	if cs.showHelp {
		// Whatever the key is, it only closes the popup.
		cs.showHelp = false
		cs.message = "Help closed"
		return false
	}

	switch key {
	case 3: // ctrl-c
		return true
	case 10, 13:
		cs.executeCommand()
		return false
	case 127, 8:
		if cs.input != "" {
			cs.input = cs.input[:len(cs.input)-1]
		}
		return false
	case 27:
		cs.clearStack()
		return false
	case '+', '-', '*', '/', '^', '%', '!':
		cs.executeSingleChar(rune(key))
		return false
	}

	switch {
	case key == 'q' && cs.input == "":
		return true
	case key >= '0' && key <= '9', key == '.':
		cs.input += string(rune(key))
	case key >= 'a' && key <= 'z', key >= 'A' && key <= 'Z':
		cs.input += string(rune(key))
	}
	return false
}

func parseTTYKeyStream(raw string) ([]int, string) {
	if raw == "" {
		return nil, ""
	}
	if after, ok := strings.CutPrefix(raw, "c:"); ok {
		if n, err := strconv.Atoi(after); err == nil && n > 0 {
			return []int{normalizeVTKeyCode(n)}, ""
		}
	}

	keys := make([]int, 0, len(raw))
	for i := 0; i < len(raw); {
		if raw[i] == 0x1b {
			// Incomplete escape at end: keep for next read chunk.
			if i+1 >= len(raw) {
				return keys, raw[i:]
			}
			// CSI: ESC [ ... final
			if raw[i+1] == '[' {
				j := i + 2
				for j < len(raw) {
					c := raw[j]
					if (c >= '0' && c <= '9') || c == ';' {
						j++
						continue
					}
					break
				}
				if j >= len(raw) {
					return keys, raw[i:]
				}
				switch raw[j] {
				case 'A':
					keys = append(keys, keyUp)
				case 'B':
					keys = append(keys, keyDown)
				case 'C':
					keys = append(keys, keyRight)
				case 'D':
					keys = append(keys, keyLeft)
				case '~':
					switch raw[i+2 : j] {
					case "5":
						keys = append(keys, keyPgUp)
					case "6":
						keys = append(keys, keyPgDn)
					}
				case 'u':
					// CSI-u extension: ESC [ <codepoint> ; ... u
					param := raw[i+2 : j]
					if param != "" {
						if head, _, ok := strings.Cut(param, ";"); ok {
							param = head
						}
						if cp, err := strconv.Atoi(param); err == nil && cp > 0 {
							keys = append(keys, normalizeVTKeyCode(cp))
						}
					}
				default:
					// Unknown CSI; consume it.
				}
				i = j + 1
				continue
			}
			// SS3: ESC O final. Keypad keys in application mode land
			// here, which matters on a calculator.
			if raw[i+1] == 'O' {
				if i+2 >= len(raw) {
					return keys, raw[i:]
				}
				switch raw[i+2] {
				case 'A':
					keys = append(keys, keyUp)
				case 'B':
					keys = append(keys, keyDown)
				case 'C':
					keys = append(keys, keyRight)
				case 'D':
					keys = append(keys, keyLeft)
				case 'M':
					keys = append(keys, 13)
				case 'n':
					keys = append(keys, int('.'))
				case 'k':
					keys = append(keys, int('+'))
				case 'm':
					keys = append(keys, int('-'))
				case 'j':
					keys = append(keys, int('*'))
				case 'o':
					keys = append(keys, int('/'))
				case 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y':
					keys = append(keys, int('0')+int(raw[i+2]-'p'))
				}
				i += 3
				continue
			}
			// Bare ESC key.
			keys = append(keys, 27)
			i++
			continue
		}

		r, size := utf8.DecodeRuneInString(raw[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		if r >= 0 && r <= 255 {
			keys = append(keys, int(r))
		}
		i += size
	}
	return keys, ""
}

func normalizeVTKeyCode(k int) int {
	// Common terminal key codes seen from VT backends.
	switch k {
	case 258:
		return keyDown
	case 259:
		return keyUp
	case 260:
		return keyLeft
	case 261:
		return keyRight
	case 338:
		return keyPgDn
	case 339:
		return keyPgUp
	default:
		return k
	}
}

// runLineMode is the non-TTY fallback: a plain stdin REPL so the
// calculator works in pipes and dumb terminals. Each whitespace-separated
// field of a line is dispatched as one token.
func runLineMode(cs *calcState, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, cs.message)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		for _, tok := range strings.Fields(scanner.Text()) {
			if tok == "q" {
				return nil
			}
			cs.input = tok
			cs.executeCommand()
			fmt.Fprintln(out, cs.message)
			if cs.showHelp {
				for _, line := range helpLines {
					fmt.Fprintln(out, line)
				}
				cs.showHelp = false
			}
		}
		fmt.Fprintln(out, "stack: "+stackLine(cs.stack))
	}
	return scanner.Err()
}

func stackLine(stack []float64) string {
	parts := make([]string, len(stack))
	for i, v := range stack {
		parts[i] = formatNum(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

type palette struct {
	border  vt.AttributeColor
	title   vt.AttributeColor
	stack   vt.AttributeColor
	input   vt.AttributeColor
	message vt.AttributeColor
	history vt.AttributeColor
	helpFG  vt.AttributeColor
	helpBG  vt.AttributeColor
}

func colorPalette() palette {
	return palette{
		border:  vt.LightGray,
		title:   vt.Cyan,
		stack:   vt.White,
		input:   vt.Yellow,
		message: vt.Green,
		history: vt.Magenta,
		helpFG:  vt.White,
		helpBG:  vt.Blue,
	}
}

func monoPalette() palette {
	return palette{
		border:  vt.LightGray,
		title:   vt.LightGray,
		stack:   vt.LightGray,
		input:   vt.LightGray,
		message: vt.LightGray,
		history: vt.LightGray,
		helpFG:  vt.LightGray,
		helpBG:  vt.DefaultBackground,
	}
}

var helpLines = []string{
	"RPN Calculator Help",
	"",
	"Basic operations:",
	"  +, -, *, /, ^ (pow), % (mod)",
	"",
	"Trigonometry (degrees):",
	"  sin, cos, tan, asin, acos, atan",
	"",
	"Other math:",
	"  sqrt, cbrt, root, ln, log, exp, 10x",
	"  abs, inv (1/x), ! (factorial)",
	"",
	"Stack:",
	"  swap, drop, clear/clr, undo",
	"",
	"Press any key to close",
}

func draw(c *vt.Canvas, cs *calcState, pal palette) {
	c.Clear()
	w, h := c.Size()
	if w < 24 || h < 12 {
		c.WriteString(0, 0, pal.message, vt.DefaultBackground, clip(cs.message, w))
		c.Draw()
		return
	}
	leftW := w * 7 / 10
	stackH := h - 9

	drawBox(c, 0, 0, leftW, 3, "", pal.border)
	c.WriteString(2, 1, pal.title, vt.DefaultBackground, clip("RPN Calculator", leftW-3))

	drawBox(c, 0, 3, leftW, stackH, "Stack", pal.border)
	rows := int(stackH) - 2
	start := 0
	if len(cs.stack) > rows {
		// Keep the top of the stack visible.
		start = len(cs.stack) - rows
	}
	y := uint(4)
	for i := start; i < len(cs.stack); i++ {
		line := strconv.Itoa(i) + ": " + formatNum(cs.stack[i])
		c.WriteString(2, y, pal.stack, vt.DefaultBackground, clip(line, leftW-3))
		y++
	}

	drawBox(c, 0, 3+stackH, leftW, 3, "Input", pal.border)
	c.WriteString(2, 4+stackH, pal.input, vt.DefaultBackground, clip(cs.input, leftW-3))

	drawBox(c, 0, 6+stackH, leftW, 3, "Message", pal.border)
	c.WriteString(2, 7+stackH, pal.message, vt.DefaultBackground, clip(cs.message, leftW-3))

	drawBox(c, leftW, 0, w-leftW, h, "History", pal.border)
	y = 1
	for _, calc := range cs.calcHistory {
		if y >= h-1 {
			break
		}
		c.WriteString(leftW+2, y, pal.history, vt.DefaultBackground, clip(calc, w-leftW-3))
		y++
	}

	if cs.showHelp {
		drawHelp(c, w, h, pal)
	}
	c.Draw()
}

func drawHelp(c *vt.Canvas, w, h uint, pal palette) {
	pw := uint(0)
	for _, line := range helpLines {
		if uint(len(line)) > pw {
			pw = uint(len(line))
		}
	}
	pw += 4
	ph := uint(len(helpLines)) + 2
	if pw > w || ph > h {
		return
	}
	x := (w - pw) / 2
	y := (h - ph) / 2
	for j := uint(0); j < ph; j++ {
		for i := uint(0); i < pw; i++ {
			c.WriteRune(x+i, y+j, pal.helpFG, pal.helpBG, ' ')
		}
	}
	for idx, line := range helpLines {
		c.WriteString(x+2, y+1+uint(idx), pal.helpFG, pal.helpBG, line)
	}
}

func drawBox(c *vt.Canvas, x, y, w, h uint, title string, color vt.AttributeColor) {
	if w < 2 || h < 2 {
		return
	}
	c.WriteRune(x, y, color, vt.DefaultBackground, '┌')
	c.WriteRune(x+w-1, y, color, vt.DefaultBackground, '┐')
	c.WriteRune(x, y+h-1, color, vt.DefaultBackground, '└')
	c.WriteRune(x+w-1, y+h-1, color, vt.DefaultBackground, '┘')
	for i := x + 1; i < x+w-1; i++ {
		c.WriteRune(i, y, color, vt.DefaultBackground, '─')
		c.WriteRune(i, y+h-1, color, vt.DefaultBackground, '─')
	}
	for j := y + 1; j < y+h-1; j++ {
		c.WriteRune(x, j, color, vt.DefaultBackground, '│')
		c.WriteRune(x+w-1, j, color, vt.DefaultBackground, '│')
	}
	if title != "" && uint(len(title))+4 <= w {
		c.WriteString(x+2, y, color, vt.DefaultBackground, title)
	}
}

func clip(s string, n uint) string {
	if uint(len(s)) > n {
		return s[:n]
	}
	return s
}
