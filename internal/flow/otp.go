package flow

// otpEntry четыре ячейки ввода кода подтверждения с автопереходом
// к следующей ячейке. Нулевой байт означает пустую ячейку.
type otpEntry struct {
	slots  [otpLength]byte
	cursor int
}

const otpLength = 4

// enter принимает одну цифру в текущую ячейку и сдвигает курсор.
// Не-цифры и ввод при заполненных ячейках отклоняются.
func (o *otpEntry) enter(r rune) bool {
	if r < '0' || r > '9' {
		return false
	}
	if o.cursor >= otpLength {
		return false
	}
	o.slots[o.cursor] = byte(r)
	o.cursor++
	return true
}

// paste принимает строку из ровно четырёх цифр целиком.
func (o *otpEntry) paste(s string) bool {
	if len(s) != otpLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	copy(o.slots[:], s)
	o.cursor = otpLength
	return true
}

// complete сообщает, заполнены ли все четыре ячейки.
func (o *otpEntry) complete() bool {
	return o.cursor == otpLength
}

// code возвращает введённые цифры.
func (o *otpEntry) code() string {
	return string(o.slots[:o.cursor])
}

// clear очищает все ячейки и возвращает курсор в первую.
// После неудачной проверки пользователь всегда вводит код заново.
func (o *otpEntry) clear() {
	o.slots = [otpLength]byte{}
	o.cursor = 0
}
