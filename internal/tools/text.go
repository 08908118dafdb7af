package tools

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	entityPattern      = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	nonAlphanumPattern = regexp.MustCompile(`[^a-z0-9]`)
)

var morseTable = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'1': ".----", '2': "..---", '3': "...--", '4': "....-", '5': ".....",
	'6': "-....", '7': "--...", '8': "---..", '9': "----.", '0': "-----",
	' ': "/",
}

func textTools() []Tool {
	return []Tool{
		{Name: "base64_encode", Description: "Base64-encode text.", Run: base64Encode},
		{Name: "base64_decode", Description: "Decode Base64 text.", Run: base64Decode},
		{Name: "sha256_hasher", Description: "Hex SHA-256 digest of text.", Run: sha256Hex},
		{Name: "rot13_encoder", Description: "ROT13 transform.", Run: rot13},
		{Name: "caesar_cipher", Description: "Caesar shift, argument text::shift.", Run: caesarCipher},
		{Name: "morse_code_encoder", Description: "Encode text as Morse code.", Run: morseEncode},
		{Name: "palindrome_checker", Description: "Report whether text is a palindrome.", Run: palindromeCheck},
		{Name: "palindrome_generator", Description: "Append the reversed text to form a palindrome.", Run: palindromeGenerate},
		{Name: "anagram_finder", Description: "Rearrange the letters of a word.", Run: anagram},
		{Name: "extract_entities", Description: "List capitalised phrases.", Run: extractEntities},
		{Name: "json_validator", Description: "Validate and pretty-print JSON.", Run: jsonValidate},
		{Name: "csv_reader", Description: "Summarise CSV text.", Run: csvSummary},
		{Name: "markdown_to_html", Description: "Render Markdown to HTML.", Run: markdownToHTML},
		{Name: "html_title_extractor", Description: "Extract the <title> of an HTML document.", Run: htmlTitle},
		{Name: "uuid_generator", Description: "Generate a random UUID.", Run: newUUID},
	}
}

func base64Encode(_ context.Context, arg string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(arg)), nil
}

func base64Decode(_ context.Context, arg string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(arg))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	return string(decoded), nil
}

func sha256Hex(_ context.Context, arg string) (string, error) {
	sum := sha256.Sum256([]byte(arg))
	return hex.EncodeToString(sum[:]), nil
}

func rot13(_ context.Context, arg string) (string, error) {
	return shiftLetters(arg, 13), nil
}

func caesarCipher(_ context.Context, arg string) (string, error) {
	parts, err := SplitArgs(arg, 2)
	if err != nil {
		return "", fmt.Errorf("caesar cipher: %w", err)
	}
	shift, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", fmt.Errorf("caesar cipher: invalid shift %q", parts[1])
	}
	return shiftLetters(parts[0], shift), nil
}

// shiftLetters 对 ASCII 字母做循环移位，其它字符原样保留。
func shiftLetters(text string, shift int) string {
	shift = ((shift % 26) + 26) % 26
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+rune(shift))%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+rune(shift))%26
		default:
			return r
		}
	}, text)
}

func morseEncode(_ context.Context, arg string) (string, error) {
	codes := make([]string, 0, len(arg))
	for _, r := range strings.ToUpper(arg) {
		code, ok := morseTable[r]
		if !ok {
			code = "?"
		}
		codes = append(codes, code)
	}
	return strings.Join(codes, " "), nil
}

func normalizedLetters(text string) string {
	return nonAlphanumPattern.ReplaceAllString(strings.ToLower(text), "")
}

func reverse(text string) string {
	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func palindromeCheck(_ context.Context, arg string) (string, error) {
	s := normalizedLetters(arg)
	if s == reverse(s) {
		return "True", nil
	}
	return "False", nil
}

func palindromeGenerate(_ context.Context, arg string) (string, error) {
	return arg + reverse(normalizedLetters(arg)), nil
}

func anagram(_ context.Context, arg string) (string, error) {
	return "Anagram: " + reverse(strings.TrimSpace(arg)), nil
}

func extractEntities(_ context.Context, arg string) (string, error) {
	entities := entityPattern.FindAllString(arg, -1)
	if entities == nil {
		entities = []string{}
	}
	encoded, err := json.Marshal(entities)
	if err != nil {
		return "", err
	}
	return "Entities: " + string(encoded), nil
}

func jsonValidate(_ context.Context, arg string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(arg)), "", "  "); err != nil {
		return "", fmt.Errorf("json: %w", err)
	}
	return buf.String(), nil
}

func csvSummary(_ context.Context, arg string) (string, error) {
	reader := csv.NewReader(strings.NewReader(arg))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("csv: %w", err)
	}
	if len(rows) == 0 {
		return "CSV with 0 rows and 0 columns. First row: N/A", nil
	}
	first, _ := json.Marshal(rows[0])
	return fmt.Sprintf("CSV with %d rows and %d columns. First row: %s", len(rows), len(rows[0]), first), nil
}

func markdownToHTML(_ context.Context, arg string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(arg), &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return buf.String(), nil
}

func htmlTitle(_ context.Context, arg string) (string, error) {
	doc, err := html.Parse(strings.NewReader(arg))
	if err != nil {
		return "", fmt.Errorf("html: %w", err)
	}
	if title, ok := findTitle(doc); ok {
		return title, nil
	}
	return "No title found.", nil
}

func findTitle(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		if title := strings.TrimSpace(sb.String()); title != "" {
			return title, true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title, ok := findTitle(c); ok {
			return title, true
		}
	}
	return "", false
}

func newUUID(context.Context, string) (string, error) {
	return uuid.NewString(), nil
}
