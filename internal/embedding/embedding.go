package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder 把文本转换为定长向量。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Hashing 是一个离线可用的特征哈希向量化器：对小写词元及其二元组取哈希，
// 投影到固定维度后做 L2 归一化。相同输入总是得到相同向量。
type Hashing struct {
	dims int
}

// NewHashing 创建指定维度的 Hashing 向量化器。
func NewHashing(dims int) (*Hashing, error) {
	if dims <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}
	return &Hashing{dims: dims}, nil
}

// Dimensions 返回向量维度。
func (h *Hashing) Dimensions() int {
	return h.dims
}

// Embed 计算文本的向量。空文本返回全零向量。
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dims)
	tokens := tokenize(text)
	for i, token := range tokens {
		h.accumulate(vec, token, 1)
		if i > 0 {
			h.accumulate(vec, tokens[i-1]+" "+token, 0.5)
		}
	}
	Normalize(vec)
	return vec, nil
}

func (h *Hashing) accumulate(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dims))
	// 最高位决定符号，降低哈希碰撞带来的偏差。
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Normalize 原地做 L2 归一化，零向量保持不变。
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine 计算两个向量的余弦相似度，长度不同或存在零向量时返回 0。
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
