package certificate

import (
	"crypto/md5"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type Issuer struct {
	Country            []string `json:"IssuerCountry"`            // 国家
	Organization       []string `json:"IssuerOrganization"`       // 组织
	OrganizationalUnit []string `json:"IssuerOrganizationalUnit"` // 组织单位
	SerialNumber       string   `json:"IssuerSerialNumber"`       // 序列号
	CommonName         string   `json:"IssuerCommonName"`
}

type Subject struct {
	Country            []string `json:"SubjectCountry"`            // 国家
	Organization       []string `json:"SubjectOrganization"`       // 组织
	OrganizationalUnit []string `json:"SubjectOrganizationalUnit"` // 组织单位
	SerialNumber       string   `json:"SubjectSerialNumber"`       // 序列号
	CommonName         string   `json:"SubjectCommonName"`
}

type Validity struct {
	NotBefore string // 颁发时间
	NotAfter  string // 截止时间
}

// Certificate 站点证书信息，指纹识别只消费 Issuer 部分，其余字段随结果透传
type Certificate struct {
	Issuer                      // 颁发者
	Subject                     // 主题
	Validity                    // 有效期
	Version            string   `json:"Version"`            // 版本号
	SerialNumber       string   `json:"SerialNumber"`       // 序列号
	SignatureAlgorithm string   `json:"SignatureAlgorithm"` // 证书签名算法
	PublicKey          string   `json:"PublicKey"`          // 公钥
	PublicKeyAlgorithm string   `json:"PublicKeyAlgorithm"` // 签名算法
	DNSNames           []string `json:"DNSNames"`           // 证书所关联的域名
	MD5Finger          string   `json:"MD5Finger"`          // MD5 指纹
	SHA1Finger         string   `json:"SHA1Finger"`         // SHA1 指纹
	SHA256Finger       string   `json:"SHA256Finger"`       // SHA256指纹
}

func splitByN(s string, n int) []string {
	var parts []string
	for len(s) > 0 {
		if len(s) < n {
			parts = append(parts, strings.ToUpper(s))
			break
		}
		parts = append(parts, strings.ToUpper(s[:n]))
		s = s[n:]
	}
	return parts
}

// GetCertInfoOfResponse 从响应的 TLS 状态中提取证书信息
func GetCertInfoOfResponse(response *http.Response) *Certificate {
	certificate := &Certificate{}

	state := response.TLS
	if state != nil && len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		certificate.SHA1Finger = strings.Join(splitByN(fmt.Sprintf("%x", sha1.Sum(cert.Raw)), 2), ":")
		certificate.SHA256Finger = strings.Join(splitByN(fmt.Sprintf("%x", sha256.Sum256(cert.Raw)), 2), ":")
		certificate.MD5Finger = strings.Join(splitByN(fmt.Sprintf("%x", md5.Sum(cert.Raw)), 2), ":")
		certificate.Version = strconv.Itoa(cert.Version)
		certificate.SerialNumber = strings.Join(splitByN(fmt.Sprintf("%x", cert.SerialNumber.Bytes()), 2), ":")
		certificate.SignatureAlgorithm = cert.SignatureAlgorithm.String()
		certificate.Issuer.Country = cert.Issuer.Country
		certificate.Issuer.Organization = cert.Issuer.Organization
		certificate.Issuer.OrganizationalUnit = cert.Issuer.OrganizationalUnit
		certificate.Issuer.SerialNumber = cert.Issuer.SerialNumber
		certificate.Issuer.CommonName = cert.Issuer.CommonName
		certificate.Subject.Country = cert.Subject.Country
		certificate.Subject.Organization = cert.Subject.Organization
		certificate.Subject.OrganizationalUnit = cert.Subject.OrganizationalUnit
		certificate.Subject.SerialNumber = cert.Subject.SerialNumber
		certificate.Subject.CommonName = cert.Subject.CommonName
		certificate.Validity.NotBefore = cert.NotBefore.String()
		certificate.Validity.NotAfter = cert.NotAfter.String()
		switch publicKey := cert.PublicKey.(type) {
		case *rsa.PublicKey:
			certificate.PublicKey = strings.Join(splitByN(fmt.Sprintf("%x", publicKey.N.Bytes()), 2), ":")
		}
		certificate.PublicKeyAlgorithm = cert.PublicKeyAlgorithm.String()
		certificate.DNSNames = cert.DNSNames
	}

	return certificate
}

// IssuerStrings 颁发者的可比对字符串集合
func (c *Certificate) IssuerStrings() (issuers []string) {
	if c == nil {
		return nil
	}
	issuers = append(issuers, c.Issuer.Organization...)
	if c.Issuer.CommonName != "" {
		issuers = append(issuers, c.Issuer.CommonName)
	}
	return issuers
}
