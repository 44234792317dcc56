package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength       = 3
	MaxUsernameLength       = 30
	MinTitleLength          = 3
	MaxTitleLength          = 200
	MinDescriptionLength    = 10
	MaxDescriptionLength    = 5000
	MinCoverLetterLength    = 50
	MaxCoverLetterLength    = 5000
	MaxFullNameLength       = 100
	MaxProfessionalTitleLen = 150
	MaxRequirementsLength   = 5000
	MaxReasonLength         = 1000
	MaxFeedbackLength       = 2000
	MaxExternalLinkLength   = 500
	MaxPrice                = 1000000.0
	MaxBudget               = 100000000.0 // 100 миллионов
	MaxDeliveryDays         = 365
	DateLayout              = "2006-01-02"
	TimeLayout              = "15:04"
	minPhoneDigits          = 6
	maxPhoneDigits          = 15
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	phoneRegex       = regexp.MustCompile(`^\+?[0-9 ()-]+$`)
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateRequired проверяет, что обязательное поле заполнено. Сообщение называет поле.
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("поле %s обязательно", fieldName)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart, domainPart := parts[0], parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateTitle проверяет заголовок услуги или вакансии.
func ValidateTitle(title string) error {
	if err := ValidateRequired("title", title); err != nil {
		return err
	}
	return ValidateLength("заголовок", strings.TrimSpace(title), MinTitleLength, MaxTitleLength)
}

// ValidateDescription проверяет описание услуги или вакансии.
func ValidateDescription(description string) error {
	if err := ValidateRequired("description", description); err != nil {
		return err
	}
	return ValidateLength("описание", strings.TrimSpace(description), MinDescriptionLength, MaxDescriptionLength)
}

// ValidateCoverLetter проверяет сопроводительное письмо: не менее 50 символов без крайних пробелов.
func ValidateCoverLetter(coverLetter string) error {
	if err := ValidateRequired("coverLetter", coverLetter); err != nil {
		return err
	}
	return ValidateLength("сопроводительное письмо", strings.TrimSpace(coverLetter), MinCoverLetterLength, MaxCoverLetterLength)
}

// ValidatePrice проверяет цену пакета.
func ValidatePrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("цена должна быть положительной")
	}
	if price > MaxPrice {
		return fmt.Errorf("цена не может превышать %.0f", MaxPrice)
	}
	return nil
}

// ValidateBudget проверяет бюджет вакансии.
func ValidateBudget(budget float64) error {
	if budget < 0 {
		return fmt.Errorf("бюджет не может быть отрицательным")
	}
	if budget > MaxBudget {
		return fmt.Errorf("бюджет не может превышать %.0f", MaxBudget)
	}
	return nil
}

// ValidateDeliveryTime проверяет срок выполнения пакета в днях.
func ValidateDeliveryTime(days int) error {
	if days <= 0 || days > MaxDeliveryDays {
		return fmt.Errorf("срок выполнения должен быть от 1 до %d дней", MaxDeliveryDays)
	}
	return nil
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(fieldName, value string) (time.Time, error) {
	if err := ValidateRequired(fieldName, value); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("поле %s должно быть датой в формате YYYY-MM-DD", fieldName)
	}
	return t, nil
}

// ValidateClockTime проверяет время в формате HH:MM.
func ValidateClockTime(fieldName, value string) error {
	if err := ValidateRequired(fieldName, value); err != nil {
		return err
	}
	if _, err := time.Parse(TimeLayout, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("поле %s должно быть временем в формате HH:MM", fieldName)
	}
	return nil
}

// ValidatePhone проверяет необязательный номер телефона.
func ValidatePhone(phone *string) error {
	if phone == nil || strings.TrimSpace(*phone) == "" {
		return nil
	}
	value := strings.TrimSpace(*phone)
	if !phoneRegex.MatchString(value) {
		return fmt.Errorf("номер телефона содержит недопустимые символы")
	}
	digits := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return fmt.Errorf("номер телефона должен содержать от %d до %d цифр", minPhoneDigits, maxPhoneDigits)
	}
	return nil
}

// ValidateExternalLink проверяет необязательную внешнюю ссылку.
func ValidateExternalLink(fieldName string, link *string) error {
	if link == nil || *link == "" {
		return nil
	}
	return ValidateURL(fieldName, *link)
}

// ValidateURL проверяет, что значение - абсолютная http(s) ссылка.
func ValidateURL(fieldName, link string) error {
	link = strings.TrimSpace(link)

	if err := ValidateLength(fieldName, link, 0, MaxExternalLinkLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("поле %s: некорректный формат URL", fieldName)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("поле %s: ссылка должна начинаться с http:// или https://", fieldName)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("поле %s: ссылка должна содержать доменное имя", fieldName)
	}

	return nil
}
