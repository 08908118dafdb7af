package tools

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// 只接受数字、空白、小数点、运算符与括号。
var expressionPattern = regexp.MustCompile(`^[\d\s+\-*/%^().]+$`)

const (
	passwordAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()"
	maxPasswordLength = 100
	maxFibonacciIndex = 10000
)

type conversionKey struct{ from, to string }

var conversions = map[conversionKey]func(float64) float64{
	{"meters", "feet"}:        func(v float64) float64 { return v * 3.28084 },
	{"feet", "meters"}:        func(v float64) float64 { return v / 3.28084 },
	{"kilometers", "miles"}:   func(v float64) float64 { return v * 0.621371 },
	{"miles", "kilometers"}:   func(v float64) float64 { return v / 0.621371 },
	{"kilograms", "pounds"}:   func(v float64) float64 { return v * 2.20462 },
	{"pounds", "kilograms"}:   func(v float64) float64 { return v / 2.20462 },
	{"celsius", "fahrenheit"}: func(v float64) float64 { return v*9/5 + 32 },
	{"fahrenheit", "celsius"}: func(v float64) float64 { return (v - 32) * 5 / 9 },
	{"celsius", "kelvin"}:     func(v float64) float64 { return v + 273.15 },
	{"kelvin", "celsius"}:     func(v float64) float64 { return v - 273.15 },
}

func mathTools() []Tool {
	return []Tool{
		{Name: "math_calculator", Description: "Evaluate an arithmetic expression.", Run: calculate},
		{Name: "random_number", Description: "Random integer in [a, b], argument a::b.", Run: randomNumber},
		{Name: "prime_number_checker", Description: "Report whether n is prime.", Run: primeCheck},
		{Name: "fibonacci_calculator", Description: "n-th Fibonacci number.", Run: fibonacci},
		{Name: "unit_converter", Description: "Convert value::from::to (length, mass, temperature).", Run: convertUnit},
		{Name: "password_generator", Description: "Random password of the given length (max 100).", Run: generatePassword},
	}
}

func calculate(_ context.Context, arg string) (string, error) {
	value, err := Evaluate(arg)
	if err != nil {
		return "", fmt.Errorf("math: %w", err)
	}
	return formatNumber(value), nil
}

// Evaluate 计算只包含四则运算、取模、乘方与括号的表达式。
// 乘方可写作 "**" 或 "^"，"//" 为向下取整除法。
func Evaluate(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, fmt.Errorf("expression is empty")
	}
	if !expressionPattern.MatchString(expression) {
		return 0, fmt.Errorf("expression contains invalid characters")
	}
	p := &exprParser{src: expression}
	value, err := p.sum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return value, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

// accept 跳过空白后尝试匹配 token。
func (p *exprParser) accept(token string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], token) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *exprParser) sum() (float64, error) {
	left, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		var op func(a, b float64) float64
		switch {
		case p.accept("+"):
			op = func(a, b float64) float64 { return a + b }
		case p.accept("-"):
			op = func(a, b float64) float64 { return a - b }
		default:
			return left, nil
		}
		right, err := p.product()
		if err != nil {
			return 0, err
		}
		left = op(left, right)
	}
}

func (p *exprParser) product() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		var op string
		switch {
		case p.accept("//"):
			op = "//"
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		case p.accept("%"):
			op = "%"
		default:
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op != "*" && right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		switch op {
		case "*":
			left *= right
		case "/":
			left /= right
		case "//":
			left = math.Floor(left / right)
		case "%":
			// 结果与除数同号。
			left = left - right*math.Floor(left/right)
		}
	}
}

// unary 的优先级低于乘方：-2**2 == -4。
func (p *exprParser) unary() (float64, error) {
	switch {
	case p.accept("-"):
		value, err := p.unary()
		return -value, err
	case p.accept("+"):
		return p.unary()
	}
	return p.power()
}

func (p *exprParser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if p.accept("**") || p.accept("^") {
		exponent, err := p.unary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exponent), nil
	}
	return base, nil
}

func (p *exprParser) primary() (float64, error) {
	if p.accept("(") {
		value, err := p.sum()
		if err != nil {
			return 0, err
		}
		if !p.accept(")") {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
		}
		return value, nil
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.src[start:p.pos])
	}
	return value, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseInt(arg string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
}

func randomNumber(_ context.Context, arg string) (string, error) {
	parts, err := SplitArgs(arg, 2)
	if err != nil {
		return "", fmt.Errorf("random number: %w", err)
	}
	low, err := parseInt(parts[0])
	if err != nil {
		return "", fmt.Errorf("random number: invalid lower bound %q", parts[0])
	}
	high, err := parseInt(parts[1])
	if err != nil {
		return "", fmt.Errorf("random number: invalid upper bound %q", parts[1])
	}
	if high < low {
		return "", fmt.Errorf("random number: empty range %d..%d", low, high)
	}
	span := new(big.Int).Sub(big.NewInt(high), big.NewInt(low))
	span.Add(span, big.NewInt(1))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return n.Add(n, big.NewInt(low)).String(), nil
}

func primeCheck(_ context.Context, arg string) (string, error) {
	n, err := parseInt(arg)
	if err != nil {
		return "", fmt.Errorf("prime check: invalid integer %q", arg)
	}
	if n < 2 {
		return "False", nil
	}
	for i := int64(2); i <= n/i; i++ {
		if n%i == 0 {
			return "False", nil
		}
	}
	return "True", nil
}

func fibonacci(_ context.Context, arg string) (string, error) {
	n, err := parseInt(arg)
	if err != nil {
		return "", fmt.Errorf("fibonacci: invalid integer %q", arg)
	}
	if n > maxFibonacciIndex {
		return "", fmt.Errorf("fibonacci: index %d exceeds %d", n, maxFibonacciIndex)
	}
	a, b := big.NewInt(0), big.NewInt(1)
	for i := int64(0); i < n; i++ {
		a.Add(a, b)
		a, b = b, a
	}
	return a.String(), nil
}

func convertUnit(_ context.Context, arg string) (string, error) {
	parts := strings.Split(arg, "::")
	if len(parts) != 3 {
		return "", fmt.Errorf("unit conversion: expected value::from::to")
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return "", fmt.Errorf("unit conversion: invalid value %q", parts[0])
	}
	key := conversionKey{strings.ToLower(strings.TrimSpace(parts[1])), strings.ToLower(strings.TrimSpace(parts[2]))}
	convert, ok := conversions[key]
	if !ok {
		return fmt.Sprintf("Conversion not supported: %s to %s", key.from, key.to), nil
	}
	return formatNumber(convert(value)), nil
}

func generatePassword(_ context.Context, arg string) (string, error) {
	length, err := parseInt(arg)
	if err != nil {
		return "", fmt.Errorf("password: invalid length %q", arg)
	}
	length = max(0, min(length, maxPasswordLength))
	out := make([]byte, length)
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}
