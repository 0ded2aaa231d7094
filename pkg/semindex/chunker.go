// Package semindex строит семантический индекс содержимого файлов.
//
// Пайплайн: текст режется на перекрывающиеся чанки, каждый чанк
// превращается в вектор embedding-моделью, векторы лежат в sqlite.
// Поиск brute-force по косинусной близости: для локальной коллекции
// в тысячи чанков этого достаточно.
package semindex

import (
	"strings"
	"unicode/utf8"
)

// Chunk — фрагмент текста файла с порядковым номером.
type Chunk struct {
	Ord  int    // Порядковый номер внутри файла, с нуля
	Text string
}

// SplitText режет текст на чанки по size рун с перекрытием overlap рун.
//
// Перекрытие сохраняет контекст на границах: предложение, разрезанное
// пополам, целиком попадает хотя бы в один из соседних чанков.
// Работает по рунам, а не байтам, чтобы не резать кириллицу посередине
// символа.
func SplitText(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if utf8.RuneCountInString(text) <= size {
		return []Chunk{{Ord: 0, Text: text}}
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Ord: len(chunks), Text: piece})
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
