package postgres

var EncodeVectorLiteral = encodeVectorLiteral
