package extract

import "fmt"

const promptTemplate = `Ты помощник по питанию. Разбери описание приёма пищи пользователя и верни JSON такой структуры:

{
  "products": [
    {"name": "название продукта", "weight_g": вес_в_граммах, "calories": калории, "notes": "пояснения"}
  ],
  "total_calories": сумма_калорий
}

Правила:
- отвечай только валидным JSON, без текста до или после него
- если вес не указан, оцени реалистичную порцию и объясни оценку в notes
- используй реалистичную калорийность (ккал на 100 г)
- калории и вес округляй до целых чисел
- неизвестное значение записывай как null

Описание пользователя:
---
%s
---

JSON:`

// BuildPrompt embeds the user's meal description into the fixed instruction prompt.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}
