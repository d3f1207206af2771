package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength         = 3
	MaxUsernameLength         = 30
	MinOfferTitleLength       = 3
	MaxOfferTitleLength       = 200
	MaxOfferDescriptionLength = 5000
	MaxServiceTypeLength      = 50
	MaxServicesCount          = 50
	MinHours                  = 1
	MaxHours                  = 1000
	MinTimeCredits            = 1
	MaxTimeCredits            = 1000
)

var (
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength проверяет длину строки.
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

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

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
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

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

// ValidateOfferTitle проверяет заголовок запроса услуги.
func ValidateOfferTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок запроса обязателен")
	}
	return ValidateLength("заголовок запроса", title, MinOfferTitleLength, MaxOfferTitleLength)
}

// ValidateOfferDescription проверяет описание запроса услуги.
func ValidateOfferDescription(description string) error {
	return ValidateLength("описание запроса", strings.TrimSpace(description), 0, MaxOfferDescriptionLength)
}

// ValidateServiceType проверяет тип услуги.
func ValidateServiceType(serviceType string) error {
	serviceType = strings.TrimSpace(serviceType)
	if serviceType == "" {
		return fmt.Errorf("тип услуги обязателен")
	}
	return ValidateLength("тип услуги", serviceType, 1, MaxServiceTypeLength)
}

// ValidateHours проверяет продолжительность услуги в часах.
func ValidateHours(hours int) error {
	if hours < MinHours {
		return fmt.Errorf("продолжительность должна быть не менее %d часа", MinHours)
	}
	if hours > MaxHours {
		return fmt.Errorf("продолжительность не может превышать %d часов", MaxHours)
	}
	return nil
}

// ValidateTimeCredits проверяет стоимость запроса во временных кредитах.
func ValidateTimeCredits(credits int) error {
	if credits < MinTimeCredits {
		return fmt.Errorf("стоимость должна быть не менее %d кредита", MinTimeCredits)
	}
	if credits > MaxTimeCredits {
		return fmt.Errorf("стоимость не может превышать %d кредитов", MaxTimeCredits)
	}
	return nil
}

// ValidateServices проверяет список услуг профиля.
func ValidateServices(services []string) error {
	if len(services) > MaxServicesCount {
		return fmt.Errorf("количество услуг не может превышать %d", MaxServicesCount)
	}

	seen := make(map[string]bool)
	for _, svc := range services {
		svc = strings.TrimSpace(svc)
		if svc == "" {
			return fmt.Errorf("услуга не может быть пустой")
		}
		if utf8.RuneCountInString(svc) > MaxServiceTypeLength {
			return fmt.Errorf("название услуги не может быть длиннее %d символов", MaxServiceTypeLength)
		}
		key := strings.ToLower(svc)
		if seen[key] {
			return fmt.Errorf("услуги не должны повторяться")
		}
		seen[key] = true
	}

	return nil
}
