package vocab

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"pricecorpus/pkg/contract"
)

// Options: 固定词表分词器选项。
type Options struct {
	// Pieces: 内联词表片段（可带前导空格，如 " the"）。
	Pieces []string `json:"pieces"`
	// Path: 词表文件，每行一个片段；行内 "\s" 转义表示前导空格。与 Pieces 合并。
	Path string `json:"path"`
}

// 预切分：可选前导空白 + 字母串 / 数字串 / 其他符号串；或纯空白串。覆盖全部输入字节。
var pretok = regexp.MustCompile(`\s?[\p{L}\p{M}]+|\s?\p{N}+|\s?[^\s\p{L}\p{M}\p{N}]+|\s+`)

// 0..255 为字节回退 id；词表片段从 byteIDs 起编号；BOS 紧随其后。
const byteIDs = 256

// Tokenizer: 确定性固定词表分词器。
// - 片段命中词表 → 单个 id；未命中 → 按字节逐个回退；
// - Decode(Encode(s)) == s（无损）；
// - 构造后只读。
type Tokenizer struct {
	pieces []string
	index  map[string]int
	bos    int
}

var _ contract.Tokenizer = (*Tokenizer)(nil)

// New 读取词表并返回工厂；每次调用工厂构造独立实例（独立索引）。
func New(opts *Options) (contract.TokenizerFactory, error) {
	var pieces []string
	if opts != nil {
		pieces = append(pieces, opts.Pieces...)
		if p := strings.TrimSpace(opts.Path); p != "" {
			fromFile, err := readPieces(p)
			if err != nil {
				return nil, fmt.Errorf("%w: vocab: %v", contract.ErrTokenizerInit, err)
			}
			pieces = append(pieces, fromFile...)
		}
	}
	return func() (contract.Tokenizer, error) { return NewTokenizer(pieces), nil }, nil
}

// NewTokenizer 由片段列表直接构造；重复与空片段忽略。
func NewTokenizer(pieces []string) *Tokenizer {
	t := &Tokenizer{index: make(map[string]int, len(pieces))}
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if _, dup := t.index[p]; dup {
			continue
		}
		t.index[p] = byteIDs + len(t.pieces)
		t.pieces = append(t.pieces, p)
	}
	t.bos = byteIDs + len(t.pieces)
	return t
}

// Encode 实现 contract.Tokenizer；addSpecial 时在首位附加 BOS。
func (t *Tokenizer) Encode(text string, addSpecial bool) []int {
	ids := make([]int, 0, len(text)/3+1)
	if addSpecial {
		ids = append(ids, t.bos)
	}
	for _, loc := range pretok.FindAllStringIndex(text, -1) {
		piece := text[loc[0]:loc[1]]
		if id, ok := t.index[piece]; ok {
			ids = append(ids, id)
			continue
		}
		for i := 0; i < len(piece); i++ {
			ids = append(ids, int(piece[i]))
		}
	}
	return ids
}

// Decode 实现 contract.Tokenizer；BOS 与未知 id 解码为空。
func (t *Tokenizer) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		switch {
		case id >= 0 && id < byteIDs:
			b.WriteByte(byte(id))
		case id >= byteIDs && id < t.bos:
			b.WriteString(t.pieces[id-byteIDs])
		}
	}
	return b.String()
}

// Size 返回词表片段数（不含字节回退与 BOS）。
func (t *Tokenizer) Size() int { return len(t.pieces) }

func readPieces(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(line, `\s`, " "))
	}
	return out, sc.Err()
}
