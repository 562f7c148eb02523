package main

import (
	"fmt"
	"math"
	"strconv"
)

const calcHistoryMax = 10

// calcState is the whole calculator: the value stack, the token being
// typed, undo snapshots, the last few completed calculations and the
// outcome of the last action. The terminal loop owns exactly one of
// these and calls into it once per completed token or operator key.
type calcState struct {
	stack       []float64
	input       string
	message     string
	undo        [][]float64
	calcHistory []string
	showHelp    bool
}

func newCalcState() *calcState {
	return &calcState{
		message: "Type numbers or commands (help for list), Enter to execute, q to quit",
	}
}

type opKind int

const (
	opAdd opKind = iota
	opSub
	opMul
	opDiv
	opPow
	opMod
	opSin
	opCos
	opTan
	opAsin
	opAcos
	opAtan
	opSqrt
	opLn
	opLog
	opExp
	opTenPow
	opAbs
	opCbrt
	opRoot
	opInv
	opFact
	opSwap
	opDrop
	opClear
)

type opEntry struct {
	kind  opKind
	arity int
	name  string
}

// ops maps every recognized command token to its operation; aliases
// share an entry. Tokens missing from this map are unknown commands.
var ops = map[string]opEntry{
	"+":     {opAdd, 2, "+"},
	"-":     {opSub, 2, "-"},
	"*":     {opMul, 2, "*"},
	"/":     {opDiv, 2, "/"},
	"^":     {opPow, 2, "^"},
	"pow":   {opPow, 2, "^"},
	"%":     {opMod, 2, "%"},
	"mod":   {opMod, 2, "%"},
	"sin":   {opSin, 1, "sin"},
	"cos":   {opCos, 1, "cos"},
	"tan":   {opTan, 1, "tan"},
	"asin":  {opAsin, 1, "asin"},
	"acos":  {opAcos, 1, "acos"},
	"atan":  {opAtan, 1, "atan"},
	"sqrt":  {opSqrt, 1, "sqrt"},
	"ln":    {opLn, 1, "ln"},
	"log":   {opLog, 1, "log"},
	"exp":   {opExp, 1, "exp"},
	"10x":   {opTenPow, 1, "10x"},
	"abs":   {opAbs, 1, "abs"},
	"cbrt":  {opCbrt, 1, "cbrt"},
	"root":  {opRoot, 2, "root"},
	"inv":   {opInv, 1, "inv"},
	"!":     {opFact, 1, "!"},
	"fact":  {opFact, 1, "!"},
	"swap":  {opSwap, 2, "swap"},
	"drop":  {opDrop, 1, "drop"},
	"clear": {opClear, 0, "clear"},
	"clr":   {opClear, 0, "clear"},
}

func applyBinary(kind opKind, a, b float64) float64 {
	switch kind {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	case opPow:
		return math.Pow(a, b)
	case opMod:
		return math.Mod(a, b)
	}
	return math.NaN()
}

// Trig commands work in degrees on both sides.
func applyUnary(kind opKind, a float64) float64 {
	switch kind {
	case opSin:
		return math.Sin(a * math.Pi / 180)
	case opCos:
		return math.Cos(a * math.Pi / 180)
	case opTan:
		return math.Tan(a * math.Pi / 180)
	case opAsin:
		return math.Asin(a) * 180 / math.Pi
	case opAcos:
		return math.Acos(a) * 180 / math.Pi
	case opAtan:
		return math.Atan(a) * 180 / math.Pi
	case opSqrt:
		return math.Sqrt(a)
	case opLn:
		return math.Log(a)
	case opLog:
		return math.Log10(a)
	case opExp:
		return math.Exp(a)
	case opTenPow:
		return math.Pow(10, a)
	case opAbs:
		return math.Abs(a)
	case opCbrt:
		return math.Cbrt(a)
	}
	return math.NaN()
}

// formatNum renders a value the way it would be typed: shortest decimal
// that round-trips, never exponent notation.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// snapshot records the current stack so that undo can restore it. It is
// taken before the action is validated: an operation that fails its
// precondition still costs one undo slot.
func (cs *calcState) snapshot() {
	cs.undo = append(cs.undo, append([]float64(nil), cs.stack...))
}

func (cs *calcState) pop() float64 {
	v := cs.stack[len(cs.stack)-1]
	cs.stack = cs.stack[:len(cs.stack)-1]
	return v
}

// record appends one completed calculation to the bounded history and
// mirrors it in the status message.
func (cs *calcState) record(calc string) {
	cs.message = calc
	cs.calcHistory = append(cs.calcHistory, calc)
	if len(cs.calcHistory) > calcHistoryMax {
		cs.calcHistory = cs.calcHistory[1:]
	}
}

// executeCommand consumes the pending input as one completed token.
// Empty input changes nothing, not even the message.
func (cs *calcState) executeCommand() {
	if cs.input == "" {
		return
	}
	defer func() { cs.input = "" }()

	if n, err := strconv.ParseFloat(cs.input, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		cs.snapshot()
		cs.stack = append(cs.stack, n)
		cs.message = "Pushed " + formatNum(n)
		return
	}

	switch cs.input {
	case "undo":
		if k := len(cs.undo); k > 0 {
			cs.stack = cs.undo[k-1]
			cs.undo = cs.undo[:k-1]
			cs.message = "Undid last operation"
		} else {
			cs.message = "Nothing to undo"
		}
	case "help":
		cs.showHelp = true
		cs.message = "Help shown (press any key to close)"
	default:
		cs.snapshot()
		cs.apply(cs.input)
	}
}

// executeSingleChar applies an operator key pressed without Enter. A
// partially typed number is flushed first, so 3 4 + can be typed as
// "3<enter>4+". The snapshot here is unconditional: when a flush
// happens, the keystroke consumes two undo slots.
func (cs *calcState) executeSingleChar(c rune) {
	if cs.input != "" {
		cs.executeCommand()
	}

	cs.snapshot()

	switch c {
	case '+', '-', '*', '^', '%':
		cs.binaryOp(ops[string(c)])
	case '/':
		cs.divide()
	case '!':
		cs.factorial()
	}
}

// clearStack empties the stack outside the undo mechanism; the Esc hard
// reset cannot be undone.
func (cs *calcState) clearStack() {
	cs.stack = nil
	cs.message = "Stack cleared"
}

func (cs *calcState) apply(token string) {
	op, ok := ops[token]
	if !ok {
		cs.message = "Unknown command (type 'help' for list)"
		return
	}
	switch op.kind {
	case opDiv:
		cs.divide()
	case opRoot:
		cs.root()
	case opInv:
		cs.reciprocal()
	case opFact:
		cs.factorial()
	case opSwap:
		cs.swap()
	case opDrop:
		cs.drop()
	case opClear:
		cs.stack = nil
		cs.message = "Stack cleared"
	default:
		if op.arity == 2 {
			cs.binaryOp(op)
		} else {
			cs.unaryOp(op)
		}
	}
}

func (cs *calcState) binaryOp(op opEntry) {
	if len(cs.stack) < 2 {
		cs.message = "Need 2 numbers for " + op.name
		return
	}
	b := cs.pop()
	a := cs.pop()
	r := applyBinary(op.kind, a, b)
	cs.stack = append(cs.stack, r)
	cs.record(fmt.Sprintf("%s %s %s = %s", formatNum(a), op.name, formatNum(b), formatNum(r)))
}

func (cs *calcState) unaryOp(op opEntry) {
	if len(cs.stack) < 1 {
		cs.message = "Need 1 number for " + op.name
		return
	}
	a := cs.pop()
	r := applyUnary(op.kind, a)
	cs.stack = append(cs.stack, r)
	cs.record(fmt.Sprintf("%s(%s) = %s", op.name, formatNum(a), formatNum(r)))
}

func (cs *calcState) divide() {
	if len(cs.stack) < 2 {
		cs.message = "Need 2 numbers for division"
		return
	}
	b := cs.pop()
	a := cs.pop()
	if b == 0 {
		cs.stack = append(cs.stack, a, b)
		cs.message = "Division by zero"
		return
	}
	r := a / b
	cs.stack = append(cs.stack, r)
	cs.record(fmt.Sprintf("%s / %s = %s", formatNum(a), formatNum(b), formatNum(r)))
}

func (cs *calcState) reciprocal() {
	if len(cs.stack) < 1 {
		cs.message = "Need 1 number for reciprocal"
		return
	}
	a := cs.pop()
	if a == 0 {
		cs.stack = append(cs.stack, a)
		cs.message = "Cannot take reciprocal of zero"
		return
	}
	r := 1 / a
	cs.stack = append(cs.stack, r)
	cs.record(fmt.Sprintf("1/%s = %s", formatNum(a), formatNum(r)))
}

func (cs *calcState) factorial() {
	if len(cs.stack) < 1 {
		cs.message = "Need 1 number for factorial"
		return
	}
	a := cs.pop()
	if a < 0 || a != math.Trunc(a) {
		cs.stack = append(cs.stack, a)
		cs.message = "Factorial needs non-negative integer"
		return
	}
	n := uint64(a)
	r := 1.0
	for i := uint64(2); i <= n; i++ {
		r *= float64(i)
	}
	cs.stack = append(cs.stack, r)
	cs.record(fmt.Sprintf("%d! = %s", n, formatNum(r)))
}

// root pops the index first, then the radicand: y root x = x^(1/y).
func (cs *calcState) root() {
	if len(cs.stack) < 2 {
		cs.message = "Need 2 numbers for root (y root x = x^(1/y))"
		return
	}
	y := cs.pop()
	x := cs.pop()
	if y == 0 {
		cs.stack = append(cs.stack, x, y)
		cs.message = "Cannot take 0th root"
		return
	}
	r := math.Pow(x, 1/y)
	cs.stack = append(cs.stack, r)
	cs.record(fmt.Sprintf("%s root %s = %s", formatNum(y), formatNum(x), formatNum(r)))
}

func (cs *calcState) swap() {
	if len(cs.stack) < 2 {
		cs.message = "Need 2 numbers to swap"
		return
	}
	k := len(cs.stack)
	cs.stack[k-1], cs.stack[k-2] = cs.stack[k-2], cs.stack[k-1]
	cs.message = "Swapped top 2 values"
}

func (cs *calcState) drop() {
	if len(cs.stack) == 0 {
		cs.message = "Stack is empty"
		return
	}
	cs.message = "Dropped " + formatNum(cs.pop())
}
